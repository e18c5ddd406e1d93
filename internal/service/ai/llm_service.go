package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/model/chat"
)

// Service encapsulates LLM-backed replies.
type Service struct {
	historyLimit int
	chain        compose.Runnable[map[string]any, *schema.Message]
	logger       zerolog.Logger
}

// NewService creates a new AI service instance. historyLimit bounds the
// number of prior turns sent with each command.
func NewService(ctx context.Context, chatModel model.BaseChatModel, historyLimit int, logger zerolog.Logger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		historyLimit: historyLimit,
		chain:        runnable,
		logger:       logger.With().Str("component", "ai").Logger(),
	}, nil
}

// Respond runs the chain over the session history.
func (s *Service) Respond(ctx context.Context, req Request) (string, error) {
	input := map[string]any{
		"system":  systemPrompt(req.Intent),
		"history": s.buildHistoryMessages(req.History),
		"query":   req.Command,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}

	s.logger.Debug().Str("session", req.SessionID).Int("length", len(text)).Msg("generated response")
	return text, nil
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 || s.historyLimit == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > s.historyLimit {
		startIdx = len(messages) - s.historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
