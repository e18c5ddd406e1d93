package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/echo/internal/config"
	"github.com/zhouzirui/echo/internal/handler"
	"github.com/zhouzirui/echo/internal/logging"
	"github.com/zhouzirui/echo/internal/service/ai"
	"github.com/zhouzirui/echo/internal/service/chat"
	"github.com/zhouzirui/echo/internal/service/intent"
	"github.com/zhouzirui/echo/internal/service/search"
	"github.com/zhouzirui/echo/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()
	logger := logging.Setup(os.Stderr, config.LogLevel())
	if envErr != nil {
		log.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	chatService := chat.NewService(chat.DefaultMaxHistory)

	// Initialize AI service
	var (
		chatModel model.BaseChatModel
		replies   ai.Responder
	)
	if cfg.AI.Enabled() {
		if m, err := cfg.AI.NewChatModel(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to create chat model, continuing with rule-based replies")
		} else if aiService, err := ai.NewService(ctx, m, cfg.AI.HistoryLimit, logger); err != nil {
			log.Warn().Err(err).Msg("failed to initialize AI service, continuing with rule-based replies")
		} else {
			chatModel, replies = m, aiService
			log.Info().Str("model", cfg.AI.Model).Msg("AI service initialized")
		}
	} else {
		log.Info().Msg("Ark 凭证未配置，使用规则回复")
	}
	// 规则回复；开启查询时未识别的问题先查维基百科
	var rules ai.Responder = ai.NewRuleResponder()
	if cfg.Server.WebLookup {
		rules = ai.NewLookupResponder(search.NewWikipedia(cfg.Server.WikipediaURL, logger), rules, logger)
		log.Info().Str("url", cfg.Server.WikipediaURL).Msg("web lookup enabled")
	}
	responder := ai.NewRouter(rules, replies, logger)

	// 意图识别默认只用关键词，AI_INTENT_LLM=true 时交给模型
	var intentModel model.BaseChatModel
	if cfg.AI.IntentLLMEnabled && chatModel != nil {
		intentModel = chatModel
	}
	classifier, err := intent.NewService(ctx, intentModel, 0, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize intent classifier")
	}
	if classifier.Enabled() {
		log.Info().Msg("intent classifier uses the chat model")
	}

	// Initialize Speech service
	var speechService *speech.Service
	if engine, err := speech.NewEngine(cfg.Server, cfg.Speech, logger); err != nil {
		log.Warn().Err(err).Msg("no speech engine available, /tts disabled")
	} else if speechService, err = speech.NewService(engine, cfg.Server.TempDir, cfg.Server.AudioTTL, logger); err != nil {
		log.Warn().Err(err).Msg("failed to initialize speech service, /tts disabled")
	} else {
		log.Info().Str("engine", speechService.EngineName()).Str("dir", cfg.Server.TempDir).Msg("speech service initialized")
	}

	deps := handler.Deps{
		Chat:       chatService,
		Classifier: classifier,
		Responder:  responder,
		AIEnabled:  responder.ModelEnabled(),
		Logger:     logger,
	}
	if speechService != nil {
		deps.Speech = speechService
	}

	startServer(ctx, cfg.Server, handler.NewRouter(deps), logging.Component(logger, "server"))
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("Echo backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
