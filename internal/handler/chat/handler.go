package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/analysis/intent"
	"github.com/zhouzirui/echo/internal/model/chat"
	"github.com/zhouzirui/echo/internal/service/ai"
	chatService "github.com/zhouzirui/echo/internal/service/chat"
	"github.com/zhouzirui/echo/pkg/utils"
)

// defaultSessionID 请求未携带 session_id 时使用
const defaultSessionID = "default"

// Classifier 识别命令意图
type Classifier interface {
	Classify(ctx context.Context, history []chat.Message, text string) intent.Decision
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc    *chatService.Service
	classifier Classifier
	responder  ai.Responder
	logger     zerolog.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, classifier Classifier, responder ai.Responder, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		classifier: classifier,
		responder:  responder,
		logger:     logger.With().Str("component", "chat").Logger(),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/process", h.handleProcess)
	r.Post("/clear/{sessionID}", h.handleClear)
	r.Get("/analytics/{sessionID}", h.handleAnalytics)
}

// handleProcess 识别意图、生成回复并记录双方消息
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var payload chat.ProcessRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	command := strings.TrimSpace(payload.Command)
	if command == "" {
		utils.RespondError(w, http.StatusBadRequest, "command is required")
		return
	}
	sessionID := strings.TrimSpace(payload.SessionID)
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	reply, decision, err := h.process(r.Context(), sessionID, command)
	if err != nil {
		h.logger.Error().Err(err).Str("session", sessionID).Msg("process failed")
		utils.RespondJSON(w, http.StatusInternalServerError, chat.ProcessResponse{Success: false, Error: err.Error()})
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.ProcessResponse{
		Success:  true,
		Response: reply,
		Intent:   string(decision.Intent),
	})
}

func (h *Handler) process(ctx context.Context, sessionID, command string) (string, intent.Decision, error) {
	history, err := h.chatSvc.LoadTranscript(ctx, sessionID)
	if err != nil {
		return "", intent.Decision{}, err
	}
	decision := h.classifier.Classify(ctx, history, command)

	reply, err := h.responder.Respond(ctx, ai.Request{
		SessionID: sessionID,
		Command:   command,
		Intent:    decision,
		History:   history,
	})
	if err != nil {
		return "", decision, err
	}

	label := string(decision.Intent)
	if err := h.chatSvc.SaveMessage(ctx, chat.Message{SessionID: sessionID, Role: chat.RoleUser, Content: command, Intent: label}); err != nil {
		return "", decision, err
	}
	if err := h.chatSvc.SaveMessage(ctx, chat.Message{SessionID: sessionID, Role: chat.RoleAssistant, Content: reply, Intent: label}); err != nil {
		return "", decision, err
	}

	h.logger.Debug().Str("session", sessionID).Str("intent", label).Msg("processed command")
	return reply, decision, nil
}

// handleClear 清空会话，未知会话同样返回成功
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if removed := h.chatSvc.Clear(r.Context(), sessionID); removed {
		h.logger.Info().Str("session", sessionID).Msg("session cleared")
	}
	utils.RespondJSON(w, http.StatusOK, chat.ClearResponse{Success: true})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.chatSvc.Analytics(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}
