package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeBackend struct {
	processCalls atomic.Int32
	ttsCalls     atomic.Int32
	clearedID    atomic.Value

	processStatus int
	processBody   string
	ttsBody       string
}

func (f *fakeBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/process", func(w http.ResponseWriter, r *http.Request) {
		f.processCalls.Add(1)
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["session_id"] == "" || payload["command"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status := f.processStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, f.processBody)
	})
	r.Post("/tts", func(w http.ResponseWriter, _ *http.Request) {
		f.ttsCalls.Add(1)
		_, _ = io.WriteString(w, f.ttsBody)
	})
	r.Get("/audio/{name}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "RIFF"+chi.URLParam(r, "name"))
	})
	r.Post("/clear/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		f.clearedID.Store(chi.URLParam(r, "sessionID"))
		_, _ = io.WriteString(w, `{"success":true}`)
	})
	return r
}

func newTestClient(t *testing.T, fb *fakeBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(fb.router())
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClient err: %v", err)
	}
	return c
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, &fakeBackend{})
	if !c.Health(context.Background()) {
		t.Fatal("expected healthy backend")
	}

	down, err := NewClient("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewClient err: %v", err)
	}
	if down.Health(context.Background()) {
		t.Fatal("expected unreachable backend to be unhealthy")
	}
}

func TestProcessSuccess(t *testing.T) {
	fb := &fakeBackend{processBody: `{"success":true,"response":"Hello"}`}
	c := newTestClient(t, fb)

	got, err := c.Process(context.Background(), "hi", "user_abc123def")
	if err != nil {
		t.Fatalf("Process err: %v", err)
	}
	if got != "Hello" {
		t.Fatalf("expected Hello, got %q", got)
	}
	if fb.processCalls.Load() != 1 {
		t.Fatalf("expected one /process call, got %d", fb.processCalls.Load())
	}
}

func TestProcessFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "failure flag", body: `{"success":false,"error":"boom"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `{"success":false}`},
		{name: "malformed body", body: `not json`},
		{name: "missing response", body: `{"success":true}`},
		{name: "null response", body: `{"success":true,"response":null}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, &fakeBackend{processStatus: tc.status, processBody: tc.body})
			if _, err := c.Process(context.Background(), "hi", "user_abc123def"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestProcessFailureFlagWrapsSentinel(t *testing.T) {
	c := newTestClient(t, &fakeBackend{processBody: `{"success":false,"error":"boom"}`})
	_, err := c.Process(context.Background(), "hi", "user_abc123def")
	if !errors.Is(err, ErrUnsuccessful) {
		t.Fatalf("expected ErrUnsuccessful, got %v", err)
	}
}

func TestProcessMissingResponseWrapsSentinel(t *testing.T) {
	c := newTestClient(t, &fakeBackend{processBody: `{"success":true,"intent":"greeting"}`})
	_, err := c.Process(context.Background(), "hi", "user_abc123def")
	if !errors.Is(err, ErrUnsuccessful) {
		t.Fatalf("expected ErrUnsuccessful, got %v", err)
	}
}

func TestSynthesizeAndFetchAudio(t *testing.T) {
	fb := &fakeBackend{ttsBody: `{"success":true,"audio_url":"/audio/speech_1.wav"}`}
	c := newTestClient(t, fb)

	ref, err := c.Synthesize(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Synthesize err: %v", err)
	}
	if ref != "/audio/speech_1.wav" {
		t.Fatalf("unexpected audio ref %q", ref)
	}

	body, err := c.FetchAudio(context.Background(), ref)
	if err != nil {
		t.Fatalf("FetchAudio err: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "RIFFspeech_1.wav" {
		t.Fatalf("unexpected audio body %q", data)
	}
}

func TestSynthesizeWithoutAudioURL(t *testing.T) {
	c := newTestClient(t, &fakeBackend{ttsBody: `{"success":true}`})
	if _, err := c.Synthesize(context.Background(), "Hello"); !errors.Is(err, ErrUnsuccessful) {
		t.Fatalf("expected ErrUnsuccessful, got %v", err)
	}
}

func TestResolveAudioURL(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:5000")
	if err != nil {
		t.Fatalf("NewClient err: %v", err)
	}

	got, err := c.ResolveAudioURL("/audio/a.wav")
	if err != nil || got != "http://127.0.0.1:5000/audio/a.wav" {
		t.Fatalf("relative: got %q err %v", got, err)
	}

	got, err = c.ResolveAudioURL("https://cdn.example.com/a.mp3")
	if err != nil || got != "https://cdn.example.com/a.mp3" {
		t.Fatalf("absolute: got %q err %v", got, err)
	}
}

func TestClearSession(t *testing.T) {
	fb := &fakeBackend{}
	c := newTestClient(t, fb)

	if err := c.ClearSession(context.Background(), "user_abc123def"); err != nil {
		t.Fatalf("ClearSession err: %v", err)
	}
	if got, _ := fb.clearedID.Load().(string); got != "user_abc123def" {
		t.Fatalf("expected clear for user_abc123def, got %q", got)
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("/just/a/path"); err == nil {
		t.Fatal("expected error for relative base url")
	}
}
