package ai

import (
	"strings"

	"github.com/zhouzirui/echo/internal/analysis/intent"
)

const basePrompt = `You are Echo, a friendly voice assistant. Your replies are read aloud, so:
- answer in one to three short sentences of plain conversational English;
- never use markdown, lists, code blocks, emoji or URLs;
- if you do not know something, say so briefly.`

// systemPrompt 根据意图附加简短提示
func systemPrompt(d intent.Decision) string {
	hint := intentHint(d.Intent)
	if hint == "" {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nThe user's message looks like ")
	b.WriteString(hint)
	return b.String()
}

func intentHint(label intent.Label) string {
	switch label {
	case intent.Greeting:
		return "a greeting. Greet them back warmly and offer help."
	case intent.Goodbye:
		return "a goodbye. Say goodbye kindly."
	case intent.Thanks:
		return "thanks. Acknowledge it briefly."
	case intent.About:
		return "a question about you. Introduce yourself as Echo."
	case intent.Help:
		return "a request for help. Mention you can tell the time and date, do quick sums, tell jokes and chat."
	case intent.Jokes:
		return "a request for a joke. Tell one short, clean joke."
	default:
		return ""
	}
}
