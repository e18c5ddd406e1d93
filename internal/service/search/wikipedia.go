// Package search looks up short encyclopedia answers for questions the
// backend cannot answer on its own.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound means no single article matches the query.
var ErrNotFound = errors.New("no summary found")

const (
	userAgent      = "echo-backend/1.0 (voice assistant)"
	maxSentences   = 2
	requestTimeout = 5 * time.Second
)

// 查询前去掉的问句前缀
var questionPrefixes = []string{"who is", "who was", "what is", "what are", "tell me about", "search for", "define"}

// Wikipedia 调用 REST summary 接口
type Wikipedia struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewWikipedia baseURL is the REST root, e.g. https://en.wikipedia.org/api/rest_v1.
func NewWikipedia(baseURL string, logger zerolog.Logger) *Wikipedia {
	return &Wikipedia{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With().Str("component", "wikipedia").Logger(),
	}
}

type summaryResponse struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// Topic strips question phrasing, leaving the article title to look up.
// It returns "" when nothing remains.
func Topic(question string) string {
	q := strings.TrimSpace(question)
	q = trimPrefixFold(q, questionPrefixes)
	q = strings.TrimRight(q, "?!. ")
	q = trimPrefixFold(q, []string{"the", "a", "an"})
	return strings.TrimSpace(q)
}

// trimPrefixFold 去掉第一个匹配的整词前缀，忽略大小写
func trimPrefixFold(s string, prefixes []string) string {
	lower := strings.ToLower(s)
	for _, prefix := range prefixes {
		if lower == prefix {
			return ""
		}
		if strings.HasPrefix(lower, prefix+" ") {
			return strings.TrimSpace(s[len(prefix):])
		}
	}
	return s
}

// Summary returns the first sentences of the article matching question.
// Disambiguation pages and missing articles yield ErrNotFound.
func (w *Wikipedia) Summary(ctx context.Context, question string) (string, error) {
	topic := Topic(question)
	if topic == "" {
		return "", ErrNotFound
	}

	endpoint := w.baseURL + "/page/summary/" + url.PathEscape(strings.ReplaceAll(topic, " ", "_"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build summary request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch summary: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch summary: unexpected status %d", resp.StatusCode)
	}

	var out summaryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode summary: %w", err)
	}
	if out.Type == "disambiguation" || strings.TrimSpace(out.Extract) == "" {
		w.logger.Debug().Str("topic", topic).Str("type", out.Type).Msg("no usable summary")
		return "", ErrNotFound
	}
	return firstSentences(out.Extract, maxSentences), nil
}

// firstSentences 保留前 n 句，适合朗读
func firstSentences(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	end := 0
	for i := 0; i < n; i++ {
		idx := strings.Index(text[end:], ". ")
		if idx < 0 {
			return text
		}
		end += idx + 1
	}
	return text[:end]
}
