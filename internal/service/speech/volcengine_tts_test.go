package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/config"
	"github.com/zhouzirui/echo/internal/volcengine"
)

func TestResourceCandidates(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		voice      string
		want       []string
	}{
		{name: "configured wins", configured: "custom", voice: "en_female_amy_jupiter_bigtts", want: []string{"custom"}},
		{name: "default voice", voice: "", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
		{name: "mega clone voice", voice: "S_clone_speaker", want: []string{"volc.megatts.default"}},
		{name: "bigtts voice", voice: "en_female_amy_jupiter_bigtts", want: []string{"seed-tts-2.0", "volc.service_type.10029"}},
		{name: "legacy voice", voice: "en_male_adam", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
	}

	for _, tt := range tests {
		got := resourceCandidates(tt.configured, tt.voice)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resourceCandidates(%q, %q) = %v, want %v", tt.name, tt.configured, tt.voice, got, tt.want)
		}
	}
}

func TestIsResourceMismatchError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "unrelated error", err: fmt.Errorf("some other error"), want: false},
		{name: "mismatch substring", err: fmt.Errorf("TTS error 1: resource ID is mismatched with speaker related resource"), want: true},
	}

	for _, tc := range cases {
		if got := isResourceMismatchError(tc.err); got != tc.want {
			t.Errorf("%s: isResourceMismatchError(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}

func ttsServer(t *testing.T, handle func(conn *websocket.Conn, resource string)) config.SpeechConfig {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resource := r.Header.Get("X-Api-Resource-Id")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f, err := volcengine.Decode(data)
		if err != nil || f.Type != volcengine.FullClientRequest {
			return
		}
		var req ttsRequest
		if err := json.Unmarshal(f.Payload, &req); err != nil || req.ReqParams.Text == "" {
			return
		}
		handle(conn, resource)
	}))
	t.Cleanup(srv.Close)

	return config.SpeechConfig{
		AppID:       "app",
		AccessToken: "token",
		Enabled:     true,
		TTSEndpoint: "ws" + strings.TrimPrefix(srv.URL, "http"),
		TTSVoice:    "en_female_amy_jupiter_bigtts",
	}
}

func jsonFrame(v any, event volcengine.Event) []byte {
	raw, _ := json.Marshal(v)
	f := &volcengine.Frame{
		Type:          volcengine.FullServerResponse,
		Serialization: volcengine.JSONSerialization,
		Payload:       raw,
	}
	if event != volcengine.EventNone {
		f.Flags = volcengine.WithEvent
		f.Event = event
		f.SessionID = "s"
	}
	return f.Encode()
}

func TestVolcengineEngineWritesAudio(t *testing.T) {
	cfg := ttsServer(t, func(conn *websocket.Conn, _ string) {
		chunk := &volcengine.Frame{Type: volcengine.AudioOnlyServerResponse, Payload: []byte("ID3")}
		_ = conn.WriteMessage(websocket.BinaryMessage, chunk.Encode())
		data := map[string]any{"code": 0, "data": base64.StdEncoding.EncodeToString([]byte("-mp3"))}
		_ = conn.WriteMessage(websocket.BinaryMessage, jsonFrame(data, volcengine.EventNone))
		_ = conn.WriteMessage(websocket.BinaryMessage, jsonFrame(map[string]any{"code": 0}, volcengine.EventSessionFinished))
	})

	engine, err := NewVolcengineEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewVolcengineEngine: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "out.mp3")
	if err := engine.Synthesize(context.Background(), "hello there", dst); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "ID3-mp3" {
		t.Fatalf("unexpected audio %q", got)
	}
}

func TestVolcengineEngineRetriesOnResourceMismatch(t *testing.T) {
	var (
		mu        sync.Mutex
		resources []string
	)
	cfg := ttsServer(t, func(conn *websocket.Conn, resource string) {
		mu.Lock()
		resources = append(resources, resource)
		mu.Unlock()
		if resource == "seed-tts-2.0" {
			f := &volcengine.Frame{Type: volcengine.ErrorMessage, ErrorCode: 1, Payload: []byte("resource ID is mismatched with speaker related resource")}
			_ = conn.WriteMessage(websocket.BinaryMessage, f.Encode())
			return
		}
		f := &volcengine.Frame{Type: volcengine.AudioOnlyServerResponse, Flags: volcengine.NegativeSequence, Sequence: -1, Payload: []byte("ok")}
		_ = conn.WriteMessage(websocket.BinaryMessage, f.Encode())
	})

	engine, _ := NewVolcengineEngine(cfg, zerolog.Nop())
	if err := engine.Synthesize(context.Background(), "hi", filepath.Join(t.TempDir(), "a.mp3")); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(resources, []string{"seed-tts-2.0", "volc.service_type.10029"}) {
		t.Fatalf("unexpected resource attempts %v", resources)
	}
}

func TestVolcengineEngineAPIError(t *testing.T) {
	cfg := ttsServer(t, func(conn *websocket.Conn, _ string) {
		_ = conn.WriteMessage(websocket.BinaryMessage, jsonFrame(map[string]any{"code": 45000000, "message": "bad voice"}, volcengine.EventNone))
	})

	engine, _ := NewVolcengineEngine(cfg, zerolog.Nop())
	err := engine.Synthesize(context.Background(), "hi", filepath.Join(t.TempDir(), "a.mp3"))
	if err == nil || !strings.Contains(err.Error(), "bad voice") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestNewVolcengineEngineRequiresCredentials(t *testing.T) {
	if _, err := NewVolcengineEngine(config.SpeechConfig{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error without credentials")
	}
}
