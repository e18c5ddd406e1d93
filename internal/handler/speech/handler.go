package speech

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/model/speech"
	speechsvc "github.com/zhouzirui/echo/internal/service/speech"
	"github.com/zhouzirui/echo/pkg/utils"
)

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	Synthesize(ctx context.Context, text string) (*speech.AudioFile, error)
	Open(name string) (*os.File, *speech.AudioFile, error)
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	logger    zerolog.Logger
}

// New 创建语音处理器
func New(speechSvc SpeechService, logger zerolog.Logger) *Handler {
	return &Handler{
		speechSvc: speechSvc,
		logger:    logger.With().Str("component", "speech").Logger(),
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/tts", h.handleSynthesize)
	r.Get("/audio/{filename}", h.handleAudio)
}

// handleSynthesize 处理文本转语音请求，返回音频的相对地址
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speech.TTSRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	file, err := h.speechSvc.Synthesize(r.Context(), req.Text)
	if err != nil {
		h.logger.Error().Err(err).Msg("tts failed")
		utils.RespondError(w, http.StatusInternalServerError, "speech synthesis failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, speech.TTSResponse{
		Success:  true,
		AudioURL: "/audio/" + file.Name,
	})
}

// handleAudio 输出已合成的音频文件
func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	f, info, err := h.speechSvc.Open(chi.URLParam(r, "filename"))
	switch {
	case errors.Is(err, speechsvc.ErrInvalidName):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, speechsvc.ErrAudioNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("open audio failed")
		utils.RespondError(w, http.StatusInternalServerError, "failed to read audio")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType(info.Format))
	http.ServeContent(w, r, info.Name, info.CreatedAt, f)
}

func contentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "aiff":
		return "audio/aiff"
	default:
		return "application/octet-stream"
	}
}
