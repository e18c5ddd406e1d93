// Package capture turns microphone speech into commands.
package capture

import (
	"context"
	"errors"
)

// ErrUnsupported means speech recognition is not available in this run.
var ErrUnsupported = errors.New("speech capture not supported")

// EventKind 识别事件类型
type EventKind int

const (
	// EventInterim carries the transcript so far.
	EventInterim EventKind = iota
	// EventFinal carries the settled transcript of the utterance.
	EventFinal
	// EventError reports a recognition failure; the stream ends after it.
	EventError
)

// Event is one recognition callback.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Recognizer starts listening sessions.
type Recognizer interface {
	Start(ctx context.Context) (Stream, error)
}

// Stream is one listening session. Events is closed when the session ends,
// whether by Stop, a final result or an error. Stop may be called any number
// of times.
type Stream interface {
	Events() <-chan Event
	Stop()
}
