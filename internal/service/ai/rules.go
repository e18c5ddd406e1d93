package ai

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/zhouzirui/echo/internal/analysis/intent"
)

// FallbackReply 无法识别时的回复
const FallbackReply = "I'm not sure how to respond to that. Could you try rephrasing?"

var cannedReplies = map[intent.Label][]string{
	intent.Greeting: {"Hello! How can I help you today?", "Hi there! What can I do for you?", "Hey! Good to hear from you."},
	intent.Goodbye:  {"Goodbye! Talk to you soon.", "See you later!", "Bye! Have a great day."},
	intent.Thanks:   {"You're welcome!", "Happy to help!", "Any time."},
	intent.About:    {"I'm Echo, a voice assistant. Ask me about the time, the date, a quick sum, or just chat."},
	intent.Help: {
		"You can ask me for the time or date, have me calculate something like 12 times 4, ask for a joke, or just say hello.",
	},
	intent.Jokes: {
		"Why don't scientists trust atoms? Because they make up everything.",
		"I told my computer I needed a break, and it said no problem, it would go to sleep.",
		"Why did the scarecrow win an award? Because he was outstanding in his field.",
		"What do you call a fake noodle? An impasta.",
	},
}

// RuleResponder 基于意图的规则回复
type RuleResponder struct {
	now  func() time.Time
	pick func(n int) int
}

func NewRuleResponder() *RuleResponder {
	return &RuleResponder{now: time.Now, pick: rand.Intn}
}

func (r *RuleResponder) Respond(_ context.Context, req Request) (string, error) {
	label := req.Intent.Intent
	switch label {
	case intent.Time:
		return fmt.Sprintf("It is %s.", r.now().Format("03:04 PM")), nil
	case intent.Date:
		return fmt.Sprintf("Today is %s.", r.now().Format("Monday, January 02, 2006")), nil
	case intent.Math:
		return calculate(req.Command), nil
	}

	if replies := cannedReplies[label]; len(replies) > 0 {
		return replies[r.pick(len(replies))], nil
	}
	if strings.Contains(strings.ToLower(req.Command), "calculate") {
		return calculate(req.Command), nil
	}
	return FallbackReply, nil
}
