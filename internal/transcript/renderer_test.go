package transcript

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingView struct {
	mu       sync.Mutex
	appended  []Message
	grown     []string
	scrolls   int
	shown     int
	removed   int
	resets    [][]Message
	completed []Message
}

func (v *recordingView) Appended(msg Message) {
	v.mu.Lock()
	v.appended = append(v.appended, msg)
	v.mu.Unlock()
}

func (v *recordingView) Grew(msg Message, _ rune) {
	v.mu.Lock()
	v.grown = append(v.grown, msg.Text)
	v.mu.Unlock()
}

func (v *recordingView) TypingShown()   { v.mu.Lock(); v.shown++; v.mu.Unlock() }
func (v *recordingView) TypingRemoved() { v.mu.Lock(); v.removed++; v.mu.Unlock() }
func (v *recordingView) Scrolled()      { v.mu.Lock(); v.scrolls++; v.mu.Unlock() }

func (v *recordingView) Completed(msg Message) {
	v.mu.Lock()
	v.completed = append(v.completed, msg)
	v.mu.Unlock()
}

func (v *recordingView) Reset(msgs []Message) {
	v.mu.Lock()
	v.resets = append(v.resets, msgs)
	v.mu.Unlock()
}

type fakeClearer struct {
	calls chan string
	err   error
}

func (f *fakeClearer) ClearSession(_ context.Context, sessionID string) error {
	f.calls <- sessionID
	return f.err
}

func TestAppendStatic(t *testing.T) {
	view := &recordingView{}
	r := NewRenderer(view, nil, nil)

	r.AppendStatic("hi", SenderUser)

	msgs := r.Messages()
	if len(msgs) != 1 || msgs[0] != (Message{Sender: SenderUser, Text: "hi"}) {
		t.Fatalf("unexpected log %+v", msgs)
	}
	if view.scrolls != 1 {
		t.Fatalf("expected one scroll, got %d", view.scrolls)
	}
}

func TestAppendTypedRevealsCharacterByCharacter(t *testing.T) {
	view := &recordingView{}
	r := NewRenderer(view, nil, nil, WithRevealDelay(0))

	if err := r.AppendTyped(context.Background(), "Hello", SenderBot); err != nil {
		t.Fatalf("AppendTyped err: %v", err)
	}

	want := []string{"H", "He", "Hel", "Hell", "Hello"}
	if strings.Join(view.grown, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected reveal steps %v", view.grown)
	}

	msgs := r.Messages()
	if len(msgs) != 1 || msgs[0].Text != "Hello" || msgs[0].Sender != SenderBot {
		t.Fatalf("unexpected final log %+v", msgs)
	}
	if len(view.completed) != 1 || view.completed[0].Text != "Hello" {
		t.Fatalf("expected one completion with the full text, got %+v", view.completed)
	}
	// index 0 scrolls, plus the completion scroll
	if view.scrolls != 2 {
		t.Fatalf("expected 2 scrolls for 5 characters, got %d", view.scrolls)
	}
}

func TestAppendTypedScrollsEveryFifthCharacter(t *testing.T) {
	view := &recordingView{}
	r := NewRenderer(view, nil, nil, WithRevealDelay(0))

	_ = r.AppendTyped(context.Background(), strings.Repeat("a", 12), SenderBot)

	// indexes 0, 5, 10 and the final scroll
	if view.scrolls != 4 {
		t.Fatalf("expected 4 scrolls, got %d", view.scrolls)
	}
}

func TestAppendTypedHandlesMultibyteRunes(t *testing.T) {
	r := NewRenderer(&recordingView{}, nil, nil, WithRevealDelay(0))
	_ = r.AppendTyped(context.Background(), "héllo ✓", SenderBot)
	if got := r.Messages()[0].Text; got != "héllo ✓" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestAppendTypedWaitsBetweenCharacters(t *testing.T) {
	r := NewRenderer(&recordingView{}, nil, nil, WithRevealDelay(5*time.Millisecond))

	start := time.Now()
	_ = r.AppendTyped(context.Background(), "abcd", SenderBot)
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("reveal finished too fast: %s", elapsed)
	}
}

func TestAppendTypedStopsOnCancel(t *testing.T) {
	r := NewRenderer(&recordingView{}, nil, nil, WithRevealDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.AppendTyped(ctx, "abc", SenderBot)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTypingIndicatorRemovedOnce(t *testing.T) {
	view := &recordingView{}
	r := NewRenderer(view, nil, nil)

	r.ShowTyping()
	if !r.Typing() {
		t.Fatal("expected typing indicator")
	}
	if !r.RemoveTyping() {
		t.Fatal("first removal should report true")
	}
	if r.RemoveTyping() {
		t.Fatal("second removal should be a no-op")
	}
	if view.shown != 1 || view.removed != 1 {
		t.Fatalf("unexpected indicator calls shown=%d removed=%d", view.shown, view.removed)
	}
}

func TestClearResetsLogAndNotifiesBackend(t *testing.T) {
	view := &recordingView{}
	clearer := &fakeClearer{calls: make(chan string, 2)}
	r := NewRenderer(view, clearer, func() string { return "user_abc123def" })

	r.AppendStatic("one", SenderUser)
	r.AppendStatic("two", SenderBot)
	r.ShowTyping()
	r.Clear()

	msgs := r.Messages()
	if len(msgs) != 1 || msgs[0].Sender != SenderSystem || msgs[0].Text != ClearedText {
		t.Fatalf("unexpected log after clear %+v", msgs)
	}
	if r.Typing() {
		t.Fatal("clear should drop the typing indicator")
	}

	select {
	case id := <-clearer.calls:
		if id != "user_abc123def" {
			t.Fatalf("cleared wrong session %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("clear notification not sent")
	}

	select {
	case id := <-clearer.calls:
		t.Fatalf("unexpected second clear call for %s", id)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestClearSwallowsNotifyError(t *testing.T) {
	clearer := &fakeClearer{calls: make(chan string, 1), err: errors.New("offline")}
	r := NewRenderer(&recordingView{}, clearer, func() string { return "user_abc123def" })

	r.Clear()
	<-clearer.calls

	if len(r.Messages()) != 1 {
		t.Fatal("log should still hold the cleared message")
	}
}

func TestClearDuringRevealDetachesMessage(t *testing.T) {
	r := NewRenderer(&recordingView{}, nil, nil, WithRevealDelay(2*time.Millisecond))

	done := make(chan struct{})
	go func() {
		_ = r.AppendTyped(context.Background(), strings.Repeat("x", 20), SenderBot)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	r.Clear()
	<-done

	msgs := r.Messages()
	if len(msgs) != 1 || msgs[0].Text != ClearedText {
		t.Fatalf("reveal leaked into cleared log: %+v", msgs)
	}
}
