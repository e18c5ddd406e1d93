// Package status tracks the one-line status shown under the transcript.
package status

import (
	"sync"
	"time"
)

// Tone selects how a status is highlighted.
type Tone int

const (
	ToneIdle Tone = iota
	ToneActive
	ToneAlert
)

// Prompts shared by the capture, playback and request components.
const (
	Idle        = "Tap to speak"
	Listening   = "Listening..."
	Thinking    = "Thinking..."
	Speaking    = "Speaking..."
	VoiceError  = "Voice error. Try typing."
	MicBusy     = "Mic busy. Try again."
	Unsupported = "Voice not supported"
)

// TransientDelay is how long an error status stays before reverting.
const TransientDelay = 3000 * time.Millisecond

// Sink receives every status change.
type Sink interface {
	StatusChanged(text string, tone Tone)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(text string, tone Tone)

func (f SinkFunc) StatusChanged(text string, tone Tone) { f(text, tone) }

// Line holds the current status. Each Set bumps a generation counter so a
// pending transient reset can tell whether anything changed in between.
type Line struct {
	mu    sync.Mutex
	text  string
	tone  Tone
	gen   uint64
	sink  Sink
	after func(time.Duration, func()) *time.Timer
}

// NewLine starts at the idle prompt. sink may be nil.
func NewLine(sink Sink) *Line {
	return &Line{text: Idle, tone: ToneIdle, sink: sink, after: time.AfterFunc}
}

// Set replaces the status.
func (l *Line) Set(text string, tone Tone) {
	l.mu.Lock()
	l.text = text
	l.tone = tone
	l.gen++
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		sink.StatusChanged(text, tone)
	}
}

// SetIdle restores the idle prompt.
func (l *Line) SetIdle() {
	l.Set(Idle, ToneIdle)
}

// Current returns the status text and tone.
func (l *Line) Current() (string, Tone) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text, l.tone
}

// SetTransient shows text and schedules a return to the idle prompt after
// delay. The reset is skipped when another Set happened meanwhile or when
// quiet reports false.
func (l *Line) SetTransient(text string, tone Tone, delay time.Duration, quiet func() bool) {
	l.Set(text, tone)

	l.mu.Lock()
	gen := l.gen
	after := l.after
	l.mu.Unlock()

	after(delay, func() {
		l.mu.Lock()
		unchanged := l.gen == gen
		l.mu.Unlock()
		if !unchanged {
			return
		}
		if quiet != nil && !quiet() {
			return
		}
		l.SetIdle()
	})
}
