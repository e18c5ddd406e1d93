package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/echo/internal/backend"
	"github.com/zhouzirui/echo/internal/capture"
	"github.com/zhouzirui/echo/internal/config"
	"github.com/zhouzirui/echo/internal/console"
	"github.com/zhouzirui/echo/internal/logging"
	"github.com/zhouzirui/echo/internal/playback"
	"github.com/zhouzirui/echo/internal/prefs"
	"github.com/zhouzirui/echo/internal/widget"
)

const helpText = `Type a message and press enter to send it.
  /mic             start or stop listening
  /talkback on|off speak replies aloud
  /clear           clear the conversation
  /status          show session state
  /quit            exit`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()
	logger := logging.Setup(os.Stderr, config.LogLevel())
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	client, err := backend.NewClient(cfg.Client.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid backend address")
	}

	view := console.New(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))
	deps := widget.Deps{
		Backend: client,
		View:    view,
		Logger:  logger,
	}
	if store, err := prefs.OpenFile(cfg.Client.PrefsPath); err == nil {
		deps.Prefs = store
	} else {
		log.Warn().Err(err).Str("path", cfg.Client.PrefsPath).Msg("preferences unreadable, using defaults for this run")
		deps.Prefs = prefs.NewMemoryStore()
	}
	if rec := newRecognizer(cfg.Speech); rec != nil {
		deps.Recognizer = rec
	}
	if player, err := playback.NewFFplayPlayer(); err == nil {
		deps.Player = player
	} else {
		log.Warn().Err(err).Msg("backend audio playback disabled")
	}
	if speaker, err := playback.NewLocalSpeaker(); err == nil {
		deps.Speaker = speaker
	} else {
		log.Debug().Err(err).Msg("local speech fallback unavailable")
	}

	w := widget.New(ctx, deps)
	defer w.Close()

	log.Info().
		Str("backend", client.BaseURL()).
		Str("session", w.SessionID()).
		Bool("voice", w.VoiceSupported()).
		Msg("echo client started")

	w.Load(ctx)
	view.Println(helpText)

	runREPL(ctx, w, view)
}

func newRecognizer(cfg config.SpeechConfig) *capture.VolcengineRecognizer {
	mic, err := capture.NewFFmpegMic(cfg.MicDevice)
	if err != nil {
		log.Warn().Err(err).Msg("voice input disabled")
		return nil
	}
	rec, err := capture.NewVolcengineRecognizer(cfg, mic, log.Logger)
	if err != nil {
		if errors.Is(err, capture.ErrUnsupported) {
			log.Warn().Msg("voice input disabled: SPEECH_APP_ID / SPEECH_ACCESS_TOKEN not set")
		} else {
			log.Warn().Err(err).Msg("voice input disabled")
		}
		return nil
	}
	return rec
}

func runREPL(ctx context.Context, w *widget.Widget, view *console.Console) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleLine(ctx, w, view, line); quit {
				return
			}
		}
	}
}

func handleLine(ctx context.Context, w *widget.Widget, view *console.Console, line string) bool {
	text := strings.TrimSpace(line)
	if !strings.HasPrefix(text, "/") {
		// 处理中按回车无效，与发送按钮一致
		if w.Processing() {
			log.Debug().Str("input", text).Msg("input ignored while a command is in flight")
			return false
		}
		w.SetInput(text)
		w.SendInputAsync(ctx)
		return false
	}

	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/mic":
		if err := w.ToggleMic(ctx); err != nil && !errors.Is(err, capture.ErrUnsupported) {
			log.Debug().Err(err).Msg("mic toggle failed")
		}

	case "/talkback":
		if len(fields) < 2 {
			view.Println(fmt.Sprintf("talk-back is %s", onOff(w.TalkBack())))
			break
		}
		enabled := fields[1] == "on"
		if !enabled && fields[1] != "off" {
			view.Println("usage: /talkback on|off")
			break
		}
		if err := w.SetTalkBack(enabled); err != nil {
			log.Error().Err(err).Msg("failed to save talk-back preference")
		}
		view.Println(fmt.Sprintf("talk-back %s", onOff(enabled)))

	case "/clear":
		w.Clear()

	case "/status":
		view.Println(fmt.Sprintf("session=%s status=%q listening=%t processing=%t talkback=%s voice=%t",
			w.SessionID(), w.Status(), w.Listening(), w.Processing(), onOff(w.TalkBack()), w.VoiceSupported()))

	case "/help":
		view.Println(helpText)

	default:
		view.Println("unknown command " + fields[0])
	}
	return false
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
