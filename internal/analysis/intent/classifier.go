// Package intent classifies a user command into a coarse intent label.
package intent

import (
	"regexp"
	"strings"
)

// Label 表示命令意图
type Label string

const (
	Unknown  Label = "unknown"
	Greeting Label = "greeting"
	Goodbye  Label = "goodbye"
	Thanks   Label = "thanks"
	About    Label = "about"
	Help     Label = "help"
	Time     Label = "time"
	Date     Label = "date"
	Jokes    Label = "jokes"
	Math     Label = "math"
)

// Decision 给出意图识别结果与得分
type Decision struct {
	Intent Label
	Score  int
}

// SmallTalk reports whether the label is conversational filler rather than a
// request for information.
func (l Label) SmallTalk() bool {
	switch l {
	case Greeting, Goodbye, Thanks, About, Help:
		return true
	default:
		return false
	}
}

var keywordBuckets = map[Label][]string{
	Greeting: {"hello", "hi", "hey", "good morning", "good evening", "good afternoon", "how are you", "what's up", "howdy", "greetings"},
	Goodbye:  {"bye", "goodbye", "see you", "later", "good night", "farewell", "talk to you later"},
	Thanks:   {"thanks", "thank you", "appreciate", "grateful", "cheers"},
	About:    {"who are you", "your name", "what are you", "about you", "who made you", "echo"},
	Help:     {"help", "what can you do", "commands", "assist", "support", "how do i"},
	Time:     {"time", "clock", "what hour", "o'clock"},
	Date:     {"date", "today", "day is it", "what day", "calendar"},
	Jokes:    {"joke", "laugh", "funny", "make me smile", "humor"},
	Math:     {"calculate", "compute", "plus", "minus", "times", "divided by", "multiply"},
}

// 多词短语比单词更具体
const phraseBoost = 2

var arithmetic = regexp.MustCompile(`\d+\s*[\+\-\*/x]\s*\d+`)

// Classify 对命令进行关键词打分，返回得分最高的意图
func Classify(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Intent: Unknown}
	}
	words := tokenize(normalized)

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, kw := range keywords {
			if strings.Contains(kw, " ") || strings.Contains(kw, "'") {
				if strings.Contains(normalized, kw) {
					scores[label] += 3 + phraseBoost
				}
				continue
			}
			if words[kw] {
				scores[label] += 3
			}
		}
	}

	if arithmetic.MatchString(normalized) {
		scores[Math] += 6
	}

	best := Unknown
	bestScore := 0
	// 固定顺序保证同分时结果稳定
	for _, label := range order {
		if s := scores[label]; s > bestScore {
			best, bestScore = label, s
		}
	}
	return Decision{Intent: best, Score: bestScore}
}

var order = []Label{Math, Time, Date, Jokes, About, Help, Thanks, Goodbye, Greeting}

func tokenize(text string) map[string]bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
