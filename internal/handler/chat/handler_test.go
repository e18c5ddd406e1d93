package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	modelchat "github.com/zhouzirui/echo/internal/model/chat"
	"github.com/zhouzirui/echo/internal/service/ai"
	chatservice "github.com/zhouzirui/echo/internal/service/chat"
	intentservice "github.com/zhouzirui/echo/internal/service/intent"
)

type scriptedResponder struct {
	reply string
	err   error
	last  ai.Request
}

func (s *scriptedResponder) Respond(_ context.Context, req ai.Request) (string, error) {
	s.last = req
	return s.reply, s.err
}

func setupRouter(responder ai.Responder) (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService(0)
	classifier, _ := intentservice.NewService(context.Background(), nil, 0, zerolog.Nop())
	handler := New(chatSvc, classifier, responder, zerolog.Nop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestProcessRecordsConversation(t *testing.T) {
	responder := &scriptedResponder{reply: "Hello! How can I help you today?"}
	r, chatSvc := setupRouter(responder)

	resp := postJSON(r, "/process", modelchat.ProcessRequest{Command: "Hello", SessionID: "user_abc123def"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var out modelchat.ProcessResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.Response != "Hello! How can I help you today?" || out.Intent != "greeting" {
		t.Fatalf("unexpected response %+v", out)
	}

	history, _ := chatSvc.LoadTranscript(context.Background(), "user_abc123def")
	if len(history) != 2 || history[0].Role != modelchat.RoleUser || history[1].Role != modelchat.RoleAssistant {
		t.Fatalf("expected user and assistant turns, got %+v", history)
	}
}

func TestProcessPassesHistoryToResponder(t *testing.T) {
	responder := &scriptedResponder{reply: "ok"}
	r, _ := setupRouter(responder)

	postJSON(r, "/process", modelchat.ProcessRequest{Command: "first", SessionID: "s"})
	postJSON(r, "/process", modelchat.ProcessRequest{Command: "second", SessionID: "s"})

	if len(responder.last.History) != 2 || responder.last.History[0].Content != "first" {
		t.Fatalf("expected prior turns in history, got %+v", responder.last.History)
	}
}

func TestProcessDefaultSession(t *testing.T) {
	responder := &scriptedResponder{reply: "ok"}
	r, _ := setupRouter(responder)

	postJSON(r, "/process", map[string]string{"command": "hi"})
	if responder.last.SessionID != "default" {
		t.Fatalf("expected default session, got %q", responder.last.SessionID)
	}
}

func TestProcessRejectsEmptyCommand(t *testing.T) {
	r, _ := setupRouter(&scriptedResponder{})

	resp := postJSON(r, "/process", modelchat.ProcessRequest{Command: "   ", SessionID: "s"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestProcessResponderFailure(t *testing.T) {
	r, chatSvc := setupRouter(&scriptedResponder{err: errors.New("model offline")})

	resp := postJSON(r, "/process", modelchat.ProcessRequest{Command: "hello", SessionID: "s"})
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}

	var out modelchat.ProcessResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	if out.Success || out.Error != "model offline" {
		t.Fatalf("unexpected body %+v", out)
	}
	if history, _ := chatSvc.LoadTranscript(context.Background(), "s"); len(history) != 0 {
		t.Fatal("failed commands should not be recorded")
	}
}

func TestClearAndAnalytics(t *testing.T) {
	r, _ := setupRouter(&scriptedResponder{reply: "ok"})
	postJSON(r, "/process", modelchat.ProcessRequest{Command: "what time is it", SessionID: "s"})

	req := httptest.NewRequest(http.MethodGet, "/analytics/s", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var stats modelchat.Analytics
	_ = json.Unmarshal(resp.Body.Bytes(), &stats)
	if stats.TotalMessages != 2 || stats.IntentsUsed["time"] != 2 {
		t.Fatalf("unexpected analytics %+v", stats)
	}

	cleared := postJSON(r, "/clear/s", nil)
	if cleared.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", cleared.Code)
	}
	var out modelchat.ClearResponse
	_ = json.Unmarshal(cleared.Body.Bytes(), &out)
	if !out.Success {
		t.Fatal("clear should report success")
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/analytics/s", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", resp.Code)
	}
}

func TestClearUnknownSessionSucceeds(t *testing.T) {
	r, _ := setupRouter(&scriptedResponder{})

	if resp := postJSON(r, "/clear/nobody", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
