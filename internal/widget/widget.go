// Package widget assembles the chat client: session, transcript, status line,
// capture, playback and the request orchestrator.
package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/backend"
	"github.com/zhouzirui/echo/internal/capture"
	"github.com/zhouzirui/echo/internal/orchestrator"
	"github.com/zhouzirui/echo/internal/playback"
	"github.com/zhouzirui/echo/internal/prefs"
	"github.com/zhouzirui/echo/internal/session"
	"github.com/zhouzirui/echo/internal/status"
	"github.com/zhouzirui/echo/internal/transcript"
)

// DisconnectedText is shown when the startup health check fails.
const DisconnectedText = "⚠️ Backend disconnected. Please start the backend server."

// View draws everything the widget shows.
type View interface {
	transcript.View
	status.Sink
	Interim(text string)
}

// Deps are the collaborators of a Widget. Recognizer, Player and Speaker
// may be nil when the platform lacks them.
type Deps struct {
	Backend    *backend.Client
	Recognizer capture.Recognizer
	Player     playback.Player
	Speaker    playback.Speaker
	Prefs      prefs.Store
	View       View
	Logger     zerolog.Logger

	// RevealDelay overrides the typing speed; zero keeps the default.
	RevealDelay time.Duration
}

// Widget 聊天组件，对应页面上的麦克风、输入框、发送与清空按钮。
type Widget struct {
	ctx      context.Context
	session  *session.Context
	client   *backend.Client
	talkBack *prefs.TalkBack
	line     *status.Line
	renderer *transcript.Renderer
	orch     *orchestrator.Orchestrator
	mic      *capture.Adapter
	voice    *playback.Adapter
	view     View
	logger   zerolog.Logger

	inputMu sync.Mutex
	input   string
}

// New builds a widget for one run. ctx bounds commands submitted by voice.
func New(ctx context.Context, deps Deps) *Widget {
	w := &Widget{
		ctx:      ctx,
		session:  session.New(),
		client:   deps.Backend,
		talkBack: prefs.NewTalkBack(deps.Prefs),
		line:     status.NewLine(deps.View),
		view:     deps.View,
		logger:   deps.Logger.With().Str("component", "widget").Logger(),
	}

	renderOpts := []transcript.Option{transcript.WithLogger(deps.Logger)}
	if deps.RevealDelay > 0 {
		renderOpts = append(renderOpts, transcript.WithRevealDelay(deps.RevealDelay))
	}
	w.renderer = transcript.NewRenderer(deps.View, deps.Backend, w.session.ID, renderOpts...)

	w.voice = playback.NewAdapter(deps.Backend, deps.Player, deps.Speaker, w.talkBack, w.line,
		playback.WithListening(w.listening),
		playback.WithLogger(deps.Logger),
	)

	w.orch = orchestrator.New(deps.Backend, w.renderer, w.voice, w.line, w.session.ID(),
		orchestrator.WithInputClearer(func() { w.SetInput("") }),
		orchestrator.WithLogger(deps.Logger),
	)

	w.mic = capture.NewAdapter(deps.Recognizer, w.line, w.submitVoice,
		capture.WithInterim(w.showInterim),
		capture.WithBusy(w.orch.Processing),
		capture.WithLogger(deps.Logger),
	)

	return w
}

// Load runs the one-time connectivity check.
func (w *Widget) Load(ctx context.Context) bool {
	if w.client.Health(ctx) {
		return true
	}
	w.logger.Warn().Str("base_url", w.client.BaseURL()).Msg("backend health check failed")
	w.renderer.AppendStatic(DisconnectedText, transcript.SenderBot)
	return false
}

// SessionID returns the identifier of this run.
func (w *Widget) SessionID() string {
	return w.session.ID()
}

// Send submits text the way the send button and enter key do, returning once
// the reply is complete. It is ignored while a command is in flight.
func (w *Widget) Send(ctx context.Context, text string) bool {
	if w.orch.Processing() {
		return false
	}
	return w.orch.Submit(ctx, text)
}

// SendInput submits the current input field.
func (w *Widget) SendInput(ctx context.Context) bool {
	return w.Send(ctx, w.Input())
}

// SendInputAsync submits the current input field and returns without waiting
// for the reply. Enter pressed while a command is in flight is dropped and
// the field keeps its text.
func (w *Widget) SendInputAsync(ctx context.Context) bool {
	return w.orch.SubmitAsync(ctx, w.Input())
}

// ToggleMic starts or stops listening. Clicks while processing are ignored.
func (w *Widget) ToggleMic(ctx context.Context) error {
	if w.orch.Processing() {
		return nil
	}
	return w.mic.Toggle(ctx)
}

// Listening reports whether the microphone is active.
func (w *Widget) Listening() bool {
	return w.listening()
}

// VoiceSupported reports whether capture is available in this run.
func (w *Widget) VoiceSupported() bool {
	return w.mic.Supported()
}

// Processing reports whether a command is in flight.
func (w *Widget) Processing() bool {
	return w.orch.Processing()
}

// TalkBack reports whether replies are spoken.
func (w *Widget) TalkBack() bool {
	return w.talkBack.Enabled()
}

// SetTalkBack toggles and persists the talk-back preference.
func (w *Widget) SetTalkBack(enabled bool) error {
	return w.talkBack.SetEnabled(enabled)
}

// Clear resets the transcript and tells the backend to forget the session.
func (w *Widget) Clear() {
	w.renderer.Clear()
}

// Messages returns the transcript.
func (w *Widget) Messages() []transcript.Message {
	return w.renderer.Messages()
}

// Status returns the status line text.
func (w *Widget) Status() string {
	text, _ := w.line.Current()
	return text
}

// Input returns the input field.
func (w *Widget) Input() string {
	w.inputMu.Lock()
	defer w.inputMu.Unlock()
	return w.input
}

// SetInput replaces the input field.
func (w *Widget) SetInput(text string) {
	w.inputMu.Lock()
	w.input = text
	w.inputMu.Unlock()
}

// Close stops listening and waits for voice commands to finish.
func (w *Widget) Close() {
	w.mic.Stop()
	w.orch.Wait()
}

func (w *Widget) listening() bool {
	// capture is built after playback; before that nothing can be listening.
	return w.mic != nil && w.mic.Listening()
}

func (w *Widget) showInterim(text string) {
	w.SetInput(text)
	w.view.Interim(text)
}

func (w *Widget) submitVoice(command string) bool {
	return w.orch.SubmitAsync(w.ctx, strings.TrimSpace(command))
}
