// Package orchestrator runs one command at a time through the backend and
// presents the reply.
package orchestrator

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/status"
	"github.com/zhouzirui/echo/internal/transcript"
)

// ApologyText replaces the reply whenever /process fails.
const ApologyText = "I'm having trouble reaching the server. Please check if the backend is running."

// Backend answers commands.
type Backend interface {
	Process(ctx context.Context, command, sessionID string) (string, error)
}

// Transcript is the part of the renderer the orchestrator drives.
type Transcript interface {
	AppendStatic(text string, sender transcript.Sender)
	AppendTyped(ctx context.Context, text string, sender transcript.Sender) error
	ShowTyping()
	RemoveTyping() bool
}

// Speaker voices a reply and returns when it is done.
type Speaker interface {
	Speak(ctx context.Context, text string)
}

// Orchestrator 请求编排器：保证同一时间只有一个命令在处理。
type Orchestrator struct {
	mu         sync.Mutex
	processing bool
	pending    sync.WaitGroup

	backend    Backend
	transcript Transcript
	speaker    Speaker
	line       *status.Line
	sessionID  string
	clearInput func()
	logger     zerolog.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithInputClearer is called after the user message is appended.
func WithInputClearer(fn func()) Option {
	return func(o *Orchestrator) { o.clearInput = fn }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l.With().Str("component", "orchestrator").Logger() }
}

// New creates an orchestrator for one session.
func New(backend Backend, t Transcript, speaker Speaker, line *status.Line, sessionID string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:    backend,
		transcript: t,
		speaker:    speaker,
		line:       line,
		sessionID:  sessionID,
		clearInput: func() {},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Processing reports whether a command is in flight.
func (o *Orchestrator) Processing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.processing
}

// Submit processes command and returns after the reply has been shown and
// spoken. It returns false without doing anything when the command is blank
// or another command is in flight.
func (o *Orchestrator) Submit(ctx context.Context, command string) bool {
	command = strings.TrimSpace(command)
	if command == "" || !o.claim() {
		return false
	}
	o.run(ctx, command)
	return true
}

// SubmitAsync claims the processing flag before returning and finishes the
// command on its own goroutine.
func (o *Orchestrator) SubmitAsync(ctx context.Context, command string) bool {
	command = strings.TrimSpace(command)
	if command == "" || !o.claim() {
		return false
	}
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		o.run(ctx, command)
	}()
	return true
}

// Wait blocks until every SubmitAsync command has finished.
func (o *Orchestrator) Wait() {
	o.pending.Wait()
}

func (o *Orchestrator) claim() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.processing {
		return false
	}
	o.processing = true
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.processing = false
	o.mu.Unlock()
	o.line.SetIdle()
}

func (o *Orchestrator) run(ctx context.Context, command string) {
	defer o.release()

	o.transcript.AppendStatic(command, transcript.SenderUser)
	o.clearInput()

	o.transcript.ShowTyping()
	o.line.Set(status.Thinking, status.ToneActive)

	reply, err := o.backend.Process(ctx, command, o.sessionID)
	o.transcript.RemoveTyping()
	if err != nil {
		o.logger.Error().Err(err).Str("session", o.sessionID).Msg("process command failed")
		o.transcript.AppendStatic(ApologyText, transcript.SenderBot)
		return
	}

	// 语音与逐字显示同时开始，两者都结束后才释放处理标志。
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.speaker.Speak(ctx, reply)
	}()

	if err := o.transcript.AppendTyped(ctx, reply, transcript.SenderBot); err != nil {
		o.logger.Warn().Err(err).Msg("reply reveal interrupted")
	}
	wg.Wait()
}
