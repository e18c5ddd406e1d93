package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNoEngine 当前环境没有可用的合成引擎
var ErrNoEngine = errors.New("no speech synthesis engine available")

// Engine renders text into an audio file at dst.
type Engine interface {
	Name() string
	// Format is the file extension of produced audio, without the dot.
	Format() string
	Synthesize(ctx context.Context, text, dst string) error
}

// CommandEngine 通过本地命令行工具合成语音
type CommandEngine struct {
	Path   string
	format string
	args   func(dst string) []string
}

// NewCommandEngine resolves command on PATH. espeak/espeak-ng produce wav,
// macOS say produces aiff.
func NewCommandEngine(command string) (*CommandEngine, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		if runtime.GOOS == "darwin" {
			command = "say"
		} else {
			command = "espeak-ng"
		}
	}

	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrNoEngine, command, err)
	}

	e := &CommandEngine{Path: path}
	switch filepath.Base(command) {
	case "say":
		e.format = "aiff"
		e.args = func(dst string) []string { return []string{"-o", dst} }
	default:
		e.format = "wav"
		e.args = func(dst string) []string { return []string{"-w", dst, "--stdin"} }
	}
	return e, nil
}

func (e *CommandEngine) Name() string {
	return filepath.Base(e.Path)
}

func (e *CommandEngine) Format() string {
	return e.format
}

// Synthesize 文本通过 stdin 传入，避免参数注入
func (e *CommandEngine) Synthesize(ctx context.Context, text, dst string) error {
	cmd := exec.CommandContext(ctx, e.Path, e.args(dst)...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", e.Name(), err, strings.TrimSpace(string(out)))
	}
	return nil
}
