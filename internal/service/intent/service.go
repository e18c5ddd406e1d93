package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	analysis "github.com/zhouzirui/echo/internal/analysis/intent"
	"github.com/zhouzirui/echo/internal/model/chat"
)

// Service 使用大模型识别命令意图，失败时回退到关键词规则。
type Service struct {
	classifier   compose.Runnable[map[string]any, *schema.Message]
	fallback     func(text string) analysis.Decision
	historyLimit int
	logger       zerolog.Logger
}

// NewService 创建意图识别服务。chatModel 为 nil 时只使用关键词规则。
func NewService(ctx context.Context, chatModel model.BaseChatModel, historyLimit int, logger zerolog.Logger) (*Service, error) {
	if historyLimit <= 0 {
		historyLimit = 4
	}

	svc := &Service{
		fallback:     analysis.Classify,
		historyLimit: historyLimit,
		logger:       logger.With().Str("component", "intent").Logger(),
	}
	if chatModel == nil {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(intentSystemPrompt),
		schema.UserMessage(intentUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile intent classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled 返回是否启用大模型识别
func (s *Service) Enabled() bool {
	return s != nil && s.classifier != nil
}

// Classify 结合最近对话识别意图
func (s *Service) Classify(ctx context.Context, history []chat.Message, text string) analysis.Decision {
	if !s.Enabled() {
		return s.fallback(text)
	}

	input := map[string]any{
		"labels":  labelList(),
		"history": formatHistory(history, s.historyLimit),
		"command": strings.TrimSpace(text),
	}

	msg, err := s.classifier.Invoke(ctx, input)
	if err != nil {
		s.logger.Warn().Err(err).Msg("classifier invoke failed, use fallback")
		return s.fallback(text)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.fallback(text)
	}

	result, err := parseClassifierOutput(msg.Content)
	if err != nil {
		s.logger.Warn().Err(err).Msg("classifier output parse failed, use fallback")
		return s.fallback(text)
	}

	label, ok := parseLabel(result.Intent)
	if !ok {
		return s.fallback(text)
	}

	confidence := result.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	if confidence > 1 {
		confidence = 1
	}
	return analysis.Decision{Intent: label, Score: int(confidence * 10)}
}

// parseClassifierOutput 解析大模型返回的 JSON。
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func formatHistory(messages []chat.Message, limit int) string {
	start := len(messages) - limit
	if start < 0 {
		start = 0
	}

	var builder strings.Builder
	for _, msg := range messages[start:] {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := "User"
		if msg.Role == chat.RoleAssistant {
			role = "Echo"
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(role)
		builder.WriteString(": ")
		builder.WriteString(content)
	}
	if builder.Len() == 0 {
		return "(none)"
	}
	return builder.String()
}

var knownLabels = []analysis.Label{
	analysis.Greeting, analysis.Goodbye, analysis.Thanks, analysis.About, analysis.Help,
	analysis.Time, analysis.Date, analysis.Jokes, analysis.Math, analysis.Unknown,
}

func labelList() string {
	names := make([]string, len(knownLabels))
	for i, l := range knownLabels {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

func parseLabel(raw string) (analysis.Label, bool) {
	normalized := analysis.Label(strings.ToLower(strings.TrimSpace(raw)))
	for _, l := range knownLabels {
		if l == normalized {
			return l, true
		}
	}
	return "", false
}

type classifierPayload struct {
	Intent     string  `json:"intent"`
	Confidence float32 `json:"confidence"`
}

const intentSystemPrompt = "You classify commands sent to a voice assistant. Read the recent conversation and the latest command, then answer with a single JSON object: {{\"intent\": <label>, \"confidence\": <0..1>}}. Output nothing else."

const intentUserPrompt = "Allowed labels: {labels}\n\nRecent conversation:\n{history}\n\nLatest command:\n{command}"
