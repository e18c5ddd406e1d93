package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	speechmodel "github.com/zhouzirui/echo/internal/model/speech"
	speechsvc "github.com/zhouzirui/echo/internal/service/speech"
)

type wavEngine struct{}

func (wavEngine) Name() string   { return "test" }
func (wavEngine) Format() string { return "wav" }

func (wavEngine) Synthesize(_ context.Context, text, dst string) error {
	return os.WriteFile(dst, []byte("RIFF"+text), 0o644)
}

type failingService struct{}

func (failingService) Synthesize(context.Context, string) (*speechmodel.AudioFile, error) {
	return nil, errors.New("engine down")
}

func (failingService) Open(string) (*os.File, *speechmodel.AudioFile, error) {
	return nil, nil, errors.New("disk gone")
}

func setupRouter(t *testing.T, svc SpeechService) *chi.Mux {
	t.Helper()
	if svc == nil {
		defaultSvc, err := speechsvc.NewService(wavEngine{}, filepath.Join(t.TempDir(), "audio"), time.Minute, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewService: %v", err)
		}
		svc = defaultSvc
	}
	r := chi.NewRouter()
	New(svc, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func synthesize(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/tts", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSynthesizeThenFetchAudio(t *testing.T) {
	r := setupRouter(t, nil)

	resp := synthesize(r, `{"text":"Hello there"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out speechmodel.TTSResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || !strings.HasPrefix(out.AudioURL, "/audio/speech_") {
		t.Fatalf("unexpected tts response %+v", out)
	}

	audio := httptest.NewRecorder()
	r.ServeHTTP(audio, httptest.NewRequest(http.MethodGet, out.AudioURL, nil))
	if audio.Code != http.StatusOK {
		t.Fatalf("expected 200 for audio, got %d", audio.Code)
	}
	if ct := audio.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("unexpected content type %s", ct)
	}
	body, _ := io.ReadAll(audio.Body)
	if string(body) != "RIFFHello there" {
		t.Fatalf("unexpected audio body %q", body)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	r := setupRouter(t, nil)

	for _, body := range []string{`{"text":""}`, `{"text":"   "}`, `{}`} {
		if resp := synthesize(r, body); resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.Code)
		}
	}
	if resp := synthesize(r, `not json`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.Code)
	}
}

func TestSynthesizeFailureReportsUnsuccessful(t *testing.T) {
	r := setupRouter(t, failingService{})

	resp := synthesize(r, `{"text":"hi"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var out speechmodel.TTSResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	if out.Success || out.AudioURL != "" {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestAudioErrors(t *testing.T) {
	r := setupRouter(t, nil)

	missing := httptest.NewRecorder()
	r.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/audio/speech_missing.wav", nil))
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}

	invalid := httptest.NewRecorder()
	r.ServeHTTP(invalid, httptest.NewRequest(http.MethodGet, "/audio/secrets.txt", nil))
	if invalid.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", invalid.Code)
	}

	broken := setupRouter(t, failingService{})
	rec := httptest.NewRecorder()
	broken.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/speech_x.wav", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
