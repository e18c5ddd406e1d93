package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/echo/internal/capture"
	"github.com/zhouzirui/echo/internal/config"
	"github.com/zhouzirui/echo/internal/logging"
	"github.com/zhouzirui/echo/internal/service/speech"
)

func main() {
	envErr := godotenv.Load()
	logger := logging.Setup(os.Stderr, config.LogLevel())
	if envErr != nil {
		log.Warn().Err(envErr).Msg("无法加载 .env，改用系统环境变量")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("配置加载失败")
	}

	mode := flag.String("mode", "", "测试模式: asr 或 tts")
	audioPath := flag.String("audio", "", "ASR 输入音频 (16kHz mono s16le 的 wav 或 pcm)")
	realtime := flag.Bool("realtime", true, "ASR 按实际时长发送音频")
	text := flag.String("text", "", "TTS 输入文本")
	outputPath := flag.String("out", "", "TTS 输出音频文件路径 (默认根据格式自动生成)")
	engine := flag.String("engine", "", "TTS 引擎: auto, command 或 volcengine (默认读取 ECHO_TTS_ENGINE)")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "asr":
		if *audioPath == "" {
			log.Fatal().Msg("ASR 模式需要通过 -audio 指定音频文件路径")
		}
		rec, err := capture.NewVolcengineRecognizer(cfg.Speech, capture.FileSource{Path: *audioPath, Realtime: *realtime}, logger)
		if err != nil {
			log.Fatal().Err(err).Msg("语音识别未启用，请先配置 SPEECH_APP_ID 与 SPEECH_ACCESS_TOKEN")
		}
		if err := runASR(ctx, rec); err != nil {
			log.Fatal().Err(err).Msg("ASR 调用失败")
		}
	case "tts":
		if *engine != "" {
			cfg.Server.TTSEngine = strings.ToLower(*engine)
		}
		e, err := speech.NewEngine(cfg.Server, cfg.Speech, logger)
		if err != nil {
			log.Fatal().Err(err).Msg("没有可用的语音合成引擎")
		}
		if err := runTTS(ctx, e, *text, *outputPath); err != nil {
			log.Fatal().Err(err).Msg("TTS 调用失败")
		}
	default:
		flag.Usage()
		log.Fatal().Msg("请通过 -mode=asr 或 -mode=tts 指定测试模式")
	}
}

func runASR(ctx context.Context, rec capture.Recognizer) error {
	stream, err := rec.Start(ctx)
	if err != nil {
		return err
	}
	defer stream.Stop()

	log.Info().Msg("开始进行 ASR 测试")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-stream.Events():
			if !ok {
				return fmt.Errorf("stream closed without a final result")
			}
			switch ev.Kind {
			case capture.EventInterim:
				log.Info().Str("text", ev.Text).Msg("interim")
			case capture.EventFinal:
				log.Info().Str("text", ev.Text).Msg("ASR 识别成功")
				return nil
			case capture.EventError:
				return ev.Err
			}
		}
	}
}

func runTTS(ctx context.Context, e speech.Engine, text, outputPath string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("TTS 模式需要通过 -text 提供待合成文本")
	}
	if outputPath == "" {
		outputPath = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), e.Format())
	}

	log.Info().Str("engine", e.Name()).Str("out", outputPath).Msg("开始进行 TTS 测试")
	if err := e.Synthesize(ctx, text, outputPath); err != nil {
		return err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return err
	}
	log.Info().Str("out", outputPath).Int64("bytes", info.Size()).Msg("TTS 合成成功")
	return nil
}
