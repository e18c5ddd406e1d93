package capture

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/status"
)

// State of the capture adapter.
type State int

const (
	StateIdle State = iota
	// StateStarting 麦克风与识别连接建立中
	StateStarting
	StateListening
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	default:
		return "idle"
	}
}

// Adapter drives one recognizer through the IDLE/LISTENING state machine and
// hands final transcripts to submit.
type Adapter struct {
	mu      sync.Mutex
	state   State
	stream  Stream
	session uint64

	rec       Recognizer
	line      *status.Line
	submit    func(command string) bool
	onInterim func(text string)
	busy      func() bool
	logger    zerolog.Logger
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithInterim receives every transcript update, interim and final.
func WithInterim(fn func(text string)) Option {
	return func(a *Adapter) { a.onInterim = fn }
}

// WithBusy reports whether a command is being processed. The status line is
// not reset to idle while it returns true.
func WithBusy(fn func() bool) Option {
	return func(a *Adapter) { a.busy = fn }
}

// WithLogger sets the adapter logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.logger = l.With().Str("component", "capture").Logger() }
}

// NewAdapter wires rec to the status line. A nil rec disables capture for the
// run and shows the unsupported prompt.
func NewAdapter(rec Recognizer, line *status.Line, submit func(command string) bool, opts ...Option) *Adapter {
	a := &Adapter{
		rec:       rec,
		line:      line,
		submit:    submit,
		onInterim: func(string) {},
		busy:      func() bool { return false },
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if rec == nil {
		line.Set(status.Unsupported, status.ToneAlert)
	}
	return a
}

// Supported reports whether capture can be used in this run.
func (a *Adapter) Supported() bool {
	return a.rec != nil
}

// State returns the current state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Listening reports whether a session is active.
func (a *Adapter) Listening() bool {
	return a.State() == StateListening
}

// Start begins listening. It is a no-op while starting or listening. If the
// recognizer cannot start, the adapter returns to idle and shows the busy
// prompt. The recognizer is started without holding the adapter lock, so
// state queries stay responsive while the device and connection open.
func (a *Adapter) Start(ctx context.Context) error {
	if a.rec == nil {
		return ErrUnsupported
	}

	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return nil
	}
	a.state = StateStarting
	a.session++
	id := a.session
	a.mu.Unlock()

	stream, err := a.rec.Start(ctx)

	a.mu.Lock()
	cancelled := a.state != StateStarting || a.session != id
	if err != nil {
		if !cancelled {
			a.state = StateIdle
		}
		a.mu.Unlock()
		a.logger.Error().Err(err).Msg("recognizer failed to start")
		if !cancelled {
			a.line.Set(status.MicBusy, status.ToneAlert)
		}
		return err
	}
	if cancelled {
		// Stop 在连接建立期间被调用
		a.mu.Unlock()
		stream.Stop()
		return nil
	}
	a.state = StateListening
	a.stream = stream
	a.line.Set(status.Listening, status.ToneActive)
	a.mu.Unlock()

	go a.consume(stream, id)
	return nil
}

// Stop ends the active session. Calling it while idle does nothing.
func (a *Adapter) Stop() {
	a.mu.Lock()
	id := a.session
	a.mu.Unlock()
	a.stopSession(id)
}

// Toggle starts when idle and stops otherwise, including a start still in
// progress.
func (a *Adapter) Toggle(ctx context.Context) error {
	if a.State() != StateIdle {
		a.Stop()
		return nil
	}
	return a.Start(ctx)
}

func (a *Adapter) stopSession(id uint64) {
	a.mu.Lock()
	if a.state == StateIdle || a.session != id {
		a.mu.Unlock()
		return
	}
	stream := a.stream
	a.state = StateIdle
	a.stream = nil
	a.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	if !a.busy() {
		a.line.SetIdle()
	}
}

func (a *Adapter) consume(stream Stream, id uint64) {
	finalSeen := false

	for ev := range stream.Events() {
		switch ev.Kind {
		case EventInterim:
			if !finalSeen {
				a.onInterim(ev.Text)
			}

		case EventFinal:
			if finalSeen {
				continue
			}
			finalSeen = true
			a.onInterim(ev.Text)

			command := strings.TrimSpace(ev.Text)
			if command == "" {
				continue
			}
			// submit claims the processing flag before the session stops, so
			// the stop leaves the thinking prompt in place.
			a.submit(command)
			a.stopSession(id)

		case EventError:
			a.logger.Error().Err(ev.Err).Msg("speech recognition error")
			a.stopSession(id)
			a.line.SetTransient(status.VoiceError, status.ToneAlert, status.TransientDelay, a.quiet)
		}
	}

	a.stopSession(id)
}

func (a *Adapter) quiet() bool {
	return !a.Listening() && !a.busy()
}
