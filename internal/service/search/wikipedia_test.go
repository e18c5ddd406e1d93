package search

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type titleLog struct {
	mu     sync.Mutex
	titles []string
}

func (l *titleLog) add(title string) {
	l.mu.Lock()
	l.titles = append(l.titles, title)
	l.mu.Unlock()
}

func (l *titleLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.titles...)
}

func newWikiServer(t *testing.T, pages map[string]string) (*Wikipedia, *titleLog) {
	t.Helper()
	requested := &titleLog{}
	r := chi.NewRouter()
	r.Get("/page/summary/{title}", func(w http.ResponseWriter, r *http.Request) {
		title := chi.URLParam(r, "title")
		requested.add(title)
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		body, ok := pages[title]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if body == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewWikipedia(srv.URL+"/", zerolog.Nop()), requested
}

func TestTopic(t *testing.T) {
	cases := map[string]string{
		"Who is Ada Lovelace?":         "Ada Lovelace",
		"what is the Eiffel Tower":     "Eiffel Tower",
		"tell me about Go (language).": "Go (language)",
		"define entropy":               "entropy",
		"Saturn":                       "Saturn",
		"what is ?":                    "",
	}
	for question, want := range cases {
		if got := Topic(question); got != want {
			t.Fatalf("Topic(%q) = %q, want %q", question, got, want)
		}
	}
}

func TestSummaryTrimsToTwoSentences(t *testing.T) {
	wiki, requested := newWikiServer(t, map[string]string{
		"Ada_Lovelace": `{"type":"standard","title":"Ada Lovelace","extract":"Ada Lovelace was an English mathematician. She worked on the Analytical Engine. She died in 1852."}`,
	})

	got, err := wiki.Summary(context.Background(), "Who is Ada Lovelace?")
	if err != nil {
		t.Fatalf("Summary err: %v", err)
	}
	want := "Ada Lovelace was an English mathematician. She worked on the Analytical Engine."
	if got != want {
		t.Fatalf("unexpected summary %q", got)
	}
	if titles := requested.all(); len(titles) != 1 || titles[0] != "Ada_Lovelace" {
		t.Fatalf("unexpected request titles %v", titles)
	}
}

func TestSummaryNotFound(t *testing.T) {
	wiki, requested := newWikiServer(t, map[string]string{
		"Mercury": `{"type":"disambiguation","title":"Mercury","extract":"Mercury may refer to:"}`,
		"Blank":   `{"type":"standard","title":"Blank","extract":"  "}`,
	})

	for _, question := range []string{"what is Mercury", "define Blank", "who is Nobody Atall"} {
		if _, err := wiki.Summary(context.Background(), question); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Summary(%q) expected ErrNotFound, got %v", question, err)
		}
	}
	if _, err := wiki.Summary(context.Background(), "what is"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty topic should not be looked up, got %v", err)
	}
	if titles := requested.all(); len(titles) != 3 {
		t.Fatalf("expected 3 requests, got %v", titles)
	}
}

func TestSummaryServerError(t *testing.T) {
	wiki, _ := newWikiServer(t, map[string]string{"Broken": ""})

	_, err := wiki.Summary(context.Background(), "what is Broken")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a transport error, got %v", err)
	}
}

func TestFirstSentences(t *testing.T) {
	if got := firstSentences("One.  Two.\nThree.", 2); got != "One. Two." {
		t.Fatalf("unexpected %q", got)
	}
	if got := firstSentences("Only one sentence.", 2); got != "Only one sentence." {
		t.Fatalf("unexpected %q", got)
	}
}
