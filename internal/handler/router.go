package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/handler/chat"
	"github.com/zhouzirui/echo/internal/handler/speech"
	middlewarePkg "github.com/zhouzirui/echo/internal/middleware"
	chatModel "github.com/zhouzirui/echo/internal/model/chat"
	"github.com/zhouzirui/echo/internal/service/ai"
	chatService "github.com/zhouzirui/echo/internal/service/chat"
	"github.com/zhouzirui/echo/pkg/utils"
)

// Deps 路由依赖的服务
type Deps struct {
	Chat       *chatService.Service
	Classifier chat.Classifier
	Responder  ai.Responder
	Speech     speech.SpeechService
	AIEnabled  bool
	Logger     zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS())

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, chatModel.HealthResponse{
			Status:    "healthy",
			AIEnabled: deps.AIEnabled,
		})
	})

	chat.New(deps.Chat, deps.Classifier, deps.Responder, deps.Logger).RegisterRoutes(r)

	if deps.Speech != nil {
		speech.New(deps.Speech, deps.Logger).RegisterRoutes(r)
	} else {
		r.Post("/tts", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondError(w, http.StatusServiceUnavailable, "speech synthesis unavailable")
		})
	}

	return r
}
