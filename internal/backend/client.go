// Package backend talks to the conversational backend over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/zhouzirui/echo/internal/model/chat"
	"github.com/zhouzirui/echo/internal/model/speech"
)

// ErrUnsuccessful is returned when the backend answers 2xx but reports
// success=false or omits the expected payload.
var ErrUnsuccessful = errors.New("backend reported failure")

// Client 后端 HTTP 客户端。不设置请求超时，依赖底层传输的默认行为。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient 创建后端客户端
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}

	c := &Client{baseURL: u, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend base address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Health reports whether GET /health answered with any 2xx status.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/health"), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer drain(resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// processReply mirrors chat.ProcessResponse but tells a missing response
// apart from an empty one.
type processReply struct {
	Success  bool    `json:"success"`
	Response *string `json:"response"`
	Error    string  `json:"error"`
}

// Process sends one command for the session and returns the response text.
func (c *Client) Process(ctx context.Context, command, sessionID string) (string, error) {
	var out processReply
	err := c.postJSON(ctx, "/process", chat.ProcessRequest{Command: command, SessionID: sessionID}, &out)
	if err != nil {
		return "", err
	}
	if !out.Success {
		if out.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrUnsuccessful, out.Error)
		}
		return "", ErrUnsuccessful
	}
	if out.Response == nil {
		return "", fmt.Errorf("%w: no response text", ErrUnsuccessful)
	}
	return *out.Response, nil
}

// Synthesize asks POST /tts for speech and returns the audio reference
// exactly as the backend sent it.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	var out speech.TTSResponse
	if err := c.postJSON(ctx, "/tts", speech.TTSRequest{Text: text}, &out); err != nil {
		return "", err
	}
	if !out.Success || out.AudioURL == "" {
		return "", fmt.Errorf("%w: no audio reference", ErrUnsuccessful)
	}
	return out.AudioURL, nil
}

// FetchAudio downloads audio referenced by a /tts response. Relative
// references resolve against the base URL. The caller closes the body.
func (c *Client) FetchAudio(ctx context.Context, audioURL string) (io.ReadCloser, error) {
	target, err := c.ResolveAudioURL(audioURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build audio request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp.Body)
		return nil, fmt.Errorf("fetch audio: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// ResolveAudioURL joins a backend audio path such as /audio/x.wav onto the
// base URL, the way the browser concatenated them.
func (c *Client) ResolveAudioURL(audioURL string) (string, error) {
	ref, err := url.Parse(audioURL)
	if err != nil {
		return "", fmt.Errorf("parse audio url %q: %w", audioURL, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return c.endpoint(audioURL), nil
}

// ClearSession notifies POST /clear/{sessionID}. The response body is ignored.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/clear/"+url.PathEscape(sessionID)), nil)
	if err != nil {
		return fmt.Errorf("build clear request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	drain(resp.Body)
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("call %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL.String() + path
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
