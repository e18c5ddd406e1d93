// Package transcript renders the conversation log, including the
// character-by-character reveal of bot replies.
package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultRevealDelay is the pause after each revealed character.
	DefaultRevealDelay = 20 * time.Millisecond
	// scrollEvery controls how often the view is scrolled during a reveal.
	scrollEvery = 5
)

// View displays the log. Implementations are called with the renderer's lock
// released, from whichever goroutine mutated the log.
type View interface {
	Appended(msg Message)
	Grew(msg Message, r rune)
	TypingShown()
	TypingRemoved()
	Reset(msgs []Message)
	Scrolled()
	Completed(msg Message)
}

// SessionClearer notifies the backend that a session's history can go.
type SessionClearer interface {
	ClearSession(ctx context.Context, sessionID string) error
}

// Renderer owns the message log.
type Renderer struct {
	mu       sync.Mutex
	messages []Message
	typing   bool
	epoch    int

	view      View
	clearer   SessionClearer
	sessionID func() string
	delay     time.Duration
	logger    zerolog.Logger
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithRevealDelay overrides the per-character delay.
func WithRevealDelay(d time.Duration) Option {
	return func(r *Renderer) { r.delay = d }
}

// WithLogger sets the logger used for clear failures.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Renderer) { r.logger = l.With().Str("component", "transcript").Logger() }
}

// NewRenderer creates an empty log drawn on view.
func NewRenderer(view View, clearer SessionClearer, sessionID func() string, opts ...Option) *Renderer {
	r := &Renderer{
		view:      view,
		clearer:   clearer,
		sessionID: sessionID,
		delay:     DefaultRevealDelay,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AppendStatic appends a complete message.
func (r *Renderer) AppendStatic(text string, sender Sender) {
	msg := Message{Sender: sender, Text: text}

	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()

	r.view.Appended(msg)
	r.view.Scrolled()
}

// AppendTyped appends an empty message and grows it one rune at a time,
// returning once the full text is displayed. Only one reveal runs at a time.
// Cancelling ctx stops the reveal early.
func (r *Renderer) AppendTyped(ctx context.Context, text string, sender Sender) error {
	r.mu.Lock()
	r.messages = append(r.messages, Message{Sender: sender})
	idx := len(r.messages) - 1
	epoch := r.epoch
	r.mu.Unlock()

	r.view.Appended(Message{Sender: sender})

	detached := Message{Sender: sender}
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for i, ch := range []rune(text) {
		r.mu.Lock()
		// A Clear during the reveal drops the message; keep drawing a detached copy.
		if r.epoch == epoch {
			r.messages[idx].Text += string(ch)
			detached = r.messages[idx]
		} else {
			detached.Text += string(ch)
		}
		msg := detached
		r.mu.Unlock()

		r.view.Grew(msg, ch)
		if i%scrollEvery == 0 {
			r.view.Scrolled()
		}

		if r.delay > 0 {
			if timer == nil {
				timer = time.NewTimer(r.delay)
			} else {
				timer.Reset(r.delay)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	r.view.Scrolled()
	r.view.Completed(detached)
	return nil
}

// ShowTyping displays the typing placeholder.
func (r *Renderer) ShowTyping() {
	r.mu.Lock()
	if r.typing {
		r.mu.Unlock()
		return
	}
	r.typing = true
	r.mu.Unlock()

	r.view.TypingShown()
	r.view.Scrolled()
}

// RemoveTyping removes the placeholder and reports whether one was showing.
func (r *Renderer) RemoveTyping() bool {
	r.mu.Lock()
	if !r.typing {
		r.mu.Unlock()
		return false
	}
	r.typing = false
	r.mu.Unlock()

	r.view.TypingRemoved()
	return true
}

// Clear replaces the whole log with one system message and tells the backend
// to drop the session without waiting for the answer.
func (r *Renderer) Clear() {
	msg := Message{Sender: SenderSystem, Text: ClearedText}

	r.mu.Lock()
	r.messages = []Message{msg}
	r.typing = false
	r.epoch++
	r.mu.Unlock()

	r.view.Reset([]Message{msg})

	if r.clearer == nil || r.sessionID == nil {
		return
	}
	id := r.sessionID()
	go func() {
		if err := r.clearer.ClearSession(context.Background(), id); err != nil {
			r.logger.Error().Err(err).Str("session", id).Msg("clear session notification failed")
		}
	}()
}

// Messages returns a copy of the log.
func (r *Renderer) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Typing reports whether the placeholder is showing.
func (r *Renderer) Typing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typing
}
