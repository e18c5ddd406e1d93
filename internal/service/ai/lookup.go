package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/analysis/intent"
	"github.com/zhouzirui/echo/internal/service/search"
)

// LookupPrefix 百科回答的开头
const LookupPrefix = "According to Wikipedia: "

var lookupQuestions = []string{"who is ", "who was ", "what is ", "what are ", "tell me about ", "search for ", "define "}

// Searcher answers encyclopedia style questions.
type Searcher interface {
	Summary(ctx context.Context, question string) (string, error)
}

// LookupResponder 未识别的"是什么/是谁"问题先查百科，查不到交给 next。
type LookupResponder struct {
	searcher Searcher
	next     Responder
	logger   zerolog.Logger
}

func NewLookupResponder(searcher Searcher, next Responder, logger zerolog.Logger) *LookupResponder {
	return &LookupResponder{
		searcher: searcher,
		next:     next,
		logger:   logger.With().Str("component", "lookup").Logger(),
	}
}

func (l *LookupResponder) Respond(ctx context.Context, req Request) (string, error) {
	if req.Intent.Intent != intent.Unknown || !isLookupQuestion(req.Command) {
		return l.next.Respond(ctx, req)
	}

	summary, err := l.searcher.Summary(ctx, req.Command)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !errors.Is(err, search.ErrNotFound) {
			l.logger.Warn().Err(err).Str("session", req.SessionID).Msg("lookup failed")
		}
		return l.next.Respond(ctx, req)
	}
	return LookupPrefix + summary, nil
}

func isLookupQuestion(command string) bool {
	lower := strings.ToLower(strings.TrimSpace(command))
	for _, q := range lookupQuestions {
		if strings.HasPrefix(lower, q) {
			return true
		}
	}
	return false
}
