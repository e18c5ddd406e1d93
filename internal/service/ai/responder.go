package ai

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/analysis/intent"
	"github.com/zhouzirui/echo/internal/model/chat"
)

// Request 一次命令处理的输入
type Request struct {
	SessionID string
	Command   string
	Intent    intent.Decision
	// History 不包含本次命令
	History []chat.Message
}

// Responder produces the reply text for one command.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// Router 时间、日期、计算走规则；其余优先交给模型，模型失败时退回规则。
type Router struct {
	rules  Responder
	model  Responder
	logger zerolog.Logger
}

// NewRouter model may be nil when no LLM is configured.
func NewRouter(rules, model Responder, logger zerolog.Logger) *Router {
	return &Router{
		rules:  rules,
		model:  model,
		logger: logger.With().Str("component", "responder").Logger(),
	}
}

// ModelEnabled 是否配置了大模型
func (r *Router) ModelEnabled() bool {
	return r.model != nil
}

func (r *Router) Respond(ctx context.Context, req Request) (string, error) {
	switch req.Intent.Intent {
	case intent.Time, intent.Date, intent.Math:
		return r.rules.Respond(ctx, req)
	}
	if r.model == nil {
		return r.rules.Respond(ctx, req)
	}

	reply, err := r.model.Respond(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.logger.Warn().Err(err).Str("session", req.SessionID).Msg("model reply failed, using rules")
		return r.rules.Respond(ctx, req)
	}
	return reply, nil
}
