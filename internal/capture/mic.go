package capture

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
)

// FFmpegMic captures the default (or configured) input device with ffmpeg.
type FFmpegMic struct {
	Path   string
	Device string
	GOOS   string
}

// NewFFmpegMic returns ErrUnsupported when ffmpeg is not installed or the
// platform has no known capture input.
func NewFFmpegMic(device string) (*FFmpegMic, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found in PATH", ErrUnsupported)
	}
	m := &FFmpegMic{Path: path, Device: device, GOOS: runtime.GOOS}
	if _, err := m.args(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *FFmpegMic) args() ([]string, error) {
	var format, input string
	switch m.GOOS {
	case "darwin":
		format, input = "avfoundation", ":0"
	case "linux":
		format, input = "pulse", "default"
	default:
		return nil, fmt.Errorf("%w: mic capture is not implemented for %s", ErrUnsupported, m.GOOS)
	}
	if m.Device != "" {
		input = m.Device
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format, "-i", input,
		"-ac", "1", "-ar", strconv.Itoa(sampleRateHz),
		"-f", "s16le", "-",
	}, nil
}

// Open starts ffmpeg. Closing the returned reader stops the process.
func (m *FFmpegMic) Open(_ context.Context) (io.ReadCloser, error) {
	args, err := m.args()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(m.Path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg mic capture: %w", err)
	}
	return &micProcess{cmd: cmd, stdout: stdout}, nil
}

type micProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func (p *micProcess) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *micProcess) Close() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	return nil
}
