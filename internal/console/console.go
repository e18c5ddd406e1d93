// Package console draws the transcript and status line on a terminal.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/zhouzirui/echo/internal/status"
	"github.com/zhouzirui/echo/internal/transcript"
)

const (
	clearLine    = "\r\033[K"
	typingMarker = "Echo: ..."
)

// Console writes transcript and status updates to one writer. Writes from
// the reveal, playback and capture goroutines are serialised.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	typing  bool
	partial bool
	color   bool
}

// New returns a console writing to out. color enables ANSI highlighting of
// the status line.
func New(out io.Writer, color bool) *Console {
	return &Console{out: out, color: color}
}

func prefix(sender transcript.Sender) string {
	if sender == transcript.SenderUser {
		return "You: "
	}
	return "Echo: "
}

// Appended 新消息开始一行；空消息用于逐字显示。
func (c *Console) Appended(msg transcript.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.eraseTypingLocked()
	c.endPartialLocked()
	fmt.Fprint(c.out, prefix(msg.Sender), msg.Text)
	if msg.Text == "" {
		c.partial = true
		return
	}
	fmt.Fprintln(c.out)
}

// Grew 追加一个字符。
func (c *Console) Grew(_ transcript.Message, r rune) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.partial {
		return
	}
	fmt.Fprint(c.out, string(r))
}

func (c *Console) TypingShown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endPartialLocked()
	c.typing = true
	fmt.Fprint(c.out, typingMarker)
}

func (c *Console) TypingRemoved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eraseTypingLocked()
}

// Reset redraws the whole log.
func (c *Console) Reset(msgs []transcript.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.eraseTypingLocked()
	c.endPartialLocked()
	fmt.Fprintln(c.out, strings.Repeat("-", 40))
	for _, msg := range msgs {
		fmt.Fprintln(c.out, prefix(msg.Sender)+msg.Text)
	}
}

// Scrolled is a no-op; the terminal scrolls on its own.
func (c *Console) Scrolled() {}

// Completed terminates the line of a finished reveal.
func (c *Console) Completed(transcript.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endPartialLocked()
}

// StatusChanged prints the status line.
func (c *Console) StatusChanged(text string, tone status.Tone) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.partial || c.typing {
		// 逐字显示或占位符期间不打断当前行。
		return
	}
	fmt.Fprintln(c.out, c.paint("["+text+"]", tone))
}

// Interim shows a live transcript while listening.
func (c *Console) Interim(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.partial || c.typing {
		return
	}
	fmt.Fprint(c.out, clearLine+"> "+text)
}

// Println writes a plain line such as REPL help.
func (c *Console) Println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endPartialLocked()
	fmt.Fprintln(c.out, a...)
}

func (c *Console) eraseTypingLocked() {
	if !c.typing {
		return
	}
	c.typing = false
	fmt.Fprint(c.out, clearLine)
}

func (c *Console) endPartialLocked() {
	if !c.partial {
		return
	}
	c.partial = false
	fmt.Fprintln(c.out)
}

func (c *Console) paint(text string, tone status.Tone) string {
	if !c.color {
		return text
	}
	switch tone {
	case status.ToneActive:
		return "\033[36m" + text + "\033[0m"
	case status.ToneAlert:
		return "\033[31m" + text + "\033[0m"
	default:
		return "\033[90m" + text + "\033[0m"
	}
}
