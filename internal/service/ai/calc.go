package ai

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

const calcFailure = "I couldn't calculate that."

type wordOperator struct {
	pattern *regexp.Regexp
	symbol  string
}

var (
	// 按顺序替换，只匹配整词
	wordOperators = []wordOperator{
		{regexp.MustCompile(`\bdivided\s+by\b`), " / "},
		{regexp.MustCompile(`\bmultiplied\s+by\b`), " * "},
		{regexp.MustCompile(`\bplus\b`), " + "},
		{regexp.MustCompile(`\bminus\b`), " - "},
		{regexp.MustCompile(`\btimes\b`), " * "},
		{regexp.MustCompile(`\bx\b`), " * "},
	}
	expression = regexp.MustCompile(`[\d.\s+\-*/()]+`)
)

// calculate 从命令中提取算式并求值
func calculate(command string) string {
	text := strings.ToLower(command)
	for _, op := range wordOperators {
		text = op.pattern.ReplaceAllString(text, op.symbol)
	}

	var source string
	for _, m := range expression.FindAllString(text, -1) {
		if strings.ContainsAny(m, "0123456789") {
			source = strings.TrimRight(strings.TrimSpace(m), ".")
			break
		}
	}
	if source == "" {
		return calcFailure
	}

	out, err := expr.Eval(source, nil)
	if err != nil {
		return calcFailure
	}
	result, ok := formatNumber(out)
	if !ok {
		return calcFailure
	}
	return fmt.Sprintf("The result is %s", result)
}

// formatNumber 除零得到 Inf/NaN 时视为失败
func formatNumber(v any) (string, bool) {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return "", false
		}
		return strconv.FormatFloat(n, 'f', -1, 64), true
	default:
		return "", false
	}
}
