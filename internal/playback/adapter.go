// Package playback speaks bot replies through backend synthesis or a local
// fallback voice.
package playback

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/status"
)

// errNoPlayer is logged when no audio player is installed.
var errNoPlayer = errors.New("no audio player available")

// Synthesizer is the backend half of playback.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
	FetchAudio(ctx context.Context, audioURL string) (io.ReadCloser, error)
}

// Player plays an encoded audio stream until it ends.
type Player interface {
	Play(ctx context.Context, audio io.Reader) error
}

// Speaker synthesizes text locally.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Preference reports whether replies should be spoken.
type Preference interface {
	Enabled() bool
}

// Adapter 语音输出适配器
type Adapter struct {
	synth     Synthesizer
	player    Player
	fallback  Speaker
	pref      Preference
	line      *status.Line
	listening func() bool
	logger    zerolog.Logger
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithListening lets playback leave the status alone while capture is active.
func WithListening(fn func() bool) Option {
	return func(a *Adapter) { a.listening = fn }
}

// WithLogger sets the adapter logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.logger = l.With().Str("component", "playback").Logger() }
}

// NewAdapter creates the output adapter. player and fallback may be nil when
// the corresponding tool is not installed.
func NewAdapter(synth Synthesizer, player Player, fallback Speaker, pref Preference, line *status.Line, opts ...Option) *Adapter {
	a := &Adapter{
		synth:     synth,
		player:    player,
		fallback:  fallback,
		pref:      pref,
		line:      line,
		listening: func() bool { return false },
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Speak voices text when talk-back is on and returns when playback ends.
// Failures never reach the caller; they fall back to the local voice.
func (a *Adapter) Speak(ctx context.Context, text string) {
	if !a.pref.Enabled() {
		return
	}

	audioURL, err := a.synth.Synthesize(ctx, text)
	if err != nil {
		a.speakFallback(ctx, text, err)
		return
	}
	if a.player == nil {
		a.speakFallback(ctx, text, errNoPlayer)
		return
	}

	body, err := a.synth.FetchAudio(ctx, audioURL)
	if err != nil {
		a.speakFallback(ctx, text, err)
		return
	}
	defer body.Close()

	a.line.Set(status.Speaking, status.ToneActive)
	if err := a.player.Play(ctx, body); err != nil {
		a.logger.Error().Err(err).Str("audio_url", audioURL).Msg("audio playback failed")
	}

	if !a.listening() {
		a.line.SetIdle()
	}
}

func (a *Adapter) speakFallback(ctx context.Context, text string, cause error) {
	a.logger.Warn().Err(cause).Msg("backend speech unavailable, using local voice")
	if a.fallback == nil {
		return
	}
	if err := a.fallback.Speak(ctx, text); err != nil {
		a.logger.Error().Err(err).Msg("local speech failed")
	}
}
