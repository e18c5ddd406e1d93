package playback

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
)

// FFplayPlayer plays audio through ffplay without a window.
type FFplayPlayer struct {
	path string
}

// NewFFplayPlayer fails when ffplay is not in PATH.
func NewFFplayPlayer() (*FFplayPlayer, error) {
	path, err := exec.LookPath("ffplay")
	if err != nil {
		return nil, fmt.Errorf("ffplay is required for playback (install ffmpeg/ffplay and ensure it is in PATH): %w", err)
	}
	return &FFplayPlayer{path: path}, nil
}

// Play blocks until the stream has been played.
func (p *FFplayPlayer) Play(ctx context.Context, audio io.Reader) error {
	cmd := exec.CommandContext(ctx, p.path,
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-i", "pipe:0",
	)
	cmd.Stdin = audio
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run ffplay: %w", err)
	}
	return nil
}

// CommandSpeaker speaks text with a local TTS command such as say or espeak-ng.
// The text is fed on stdin.
type CommandSpeaker struct {
	path string
	args []string
}

type localVoice struct {
	name string
	args []string
}

// localVoices lists candidate commands per platform, in order of preference.
func localVoices(goos string) []localVoice {
	if goos == "darwin" {
		return []localVoice{{name: "say"}}
	}
	return []localVoice{
		{name: "espeak-ng", args: []string{"--stdin"}},
		{name: "espeak", args: []string{"--stdin"}},
	}
}

// NewLocalSpeaker picks the first installed local voice.
func NewLocalSpeaker() (*CommandSpeaker, error) {
	for _, v := range localVoices(runtime.GOOS) {
		if path, err := exec.LookPath(v.name); err == nil {
			return &CommandSpeaker{path: path, args: v.args}, nil
		}
	}
	return nil, fmt.Errorf("no local speech command found for %s", runtime.GOOS)
}

// Speak blocks until the command exits.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, s.path, s.args...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", s.path, err)
	}
	return nil
}
