package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/config"
	"github.com/zhouzirui/echo/internal/volcengine"
)

// VolcengineEngine 火山引擎单向流式 TTS
type VolcengineEngine struct {
	cfg    config.SpeechConfig
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewVolcengineEngine returns ErrNoEngine when credentials are missing.
func NewVolcengineEngine(cfg config.SpeechConfig, logger zerolog.Logger) (*VolcengineEngine, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: volcengine credentials missing", ErrNoEngine)
	}
	return &VolcengineEngine{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger: logger.With().Str("component", "tts").Logger(),
	}, nil
}

func (e *VolcengineEngine) Name() string {
	return "volcengine"
}

func (e *VolcengineEngine) Format() string {
	return "mp3"
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
}

type ttsServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
}

// Synthesize 依次尝试候选资源 ID，仅在资源与音色不匹配时换下一个。
func (e *VolcengineEngine) Synthesize(ctx context.Context, text, dst string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("TTS text is empty")
	}

	var lastErr error
	for idx, resourceID := range resourceCandidates(e.cfg.TTSResourceID, e.cfg.TTSVoice) {
		audio, err := e.synthesizeWithResource(ctx, text, resourceID)
		if err == nil {
			if idx > 0 {
				e.logger.Info().Str("resource", resourceID).Msg("fallback resource succeeded")
			}
			return os.WriteFile(dst, audio, 0o644)
		}
		if !isResourceMismatchError(err) {
			return err
		}
		e.logger.Warn().Err(err).Str("resource", resourceID).Msg("resource mismatch")
		lastErr = err
	}
	return lastErr
}

func (e *VolcengineEngine) synthesizeWithResource(ctx context.Context, text, resourceID string) ([]byte, error) {
	connectID := uuid.NewString()
	header := volcengine.Headers(e.cfg.AppID, e.cfg.AccessToken, resourceID, connectID)

	conn, resp, err := e.dialer.DialContext(ctx, e.cfg.TTSEndpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()
	if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
		e.logger.Debug().Str("logid", logid).Msg("tts connected")
	}

	var req ttsRequest
	req.User.UID = connectID
	req.ReqParams.Speaker = e.cfg.TTSVoice
	req.ReqParams.Text = text
	req.ReqParams.AudioParams = ttsAudioParams{Format: e.Format(), SampleRate: 24000}

	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}
	first, err := volcengine.NewFullClientRequest(payload, false)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, first.Encode()); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	// ctx 取消时解除阻塞的读
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var audio bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		f, err := volcengine.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}

		switch f.Type {
		case volcengine.ErrorMessage:
			return nil, fmt.Errorf("TTS error %d: %s", f.ErrorCode, string(f.Payload))

		case volcengine.AudioOnlyServerResponse:
			audio.Write(f.Payload)
			if !f.IsLast() {
				continue
			}

		case volcengine.FullServerResponse:
			var msg ttsServerMessage
			if len(f.Payload) > 0 {
				if err := sonic.Unmarshal(f.Payload, &msg); err != nil {
					e.logger.Warn().Err(err).Msg("failed to unmarshal TTS response")
				}
			}
			if msg.Code != 0 && msg.Code != 3000 {
				return nil, fmt.Errorf("TTS API error %d: %s", msg.Code, msg.Message)
			}
			if msg.Data != "" {
				chunk, err := base64.StdEncoding.DecodeString(msg.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
				}
				audio.Write(chunk)
			}
			if f.Event != volcengine.EventSessionFinished && !f.IsLast() && msg.Sequence >= 0 {
				continue
			}

		default:
			e.logger.Debug().Uint8("type", uint8(f.Type)).Msg("unexpected TTS message type")
			continue
		}

		if audio.Len() == 0 {
			return nil, fmt.Errorf("TTS audio is empty")
		}
		return audio.Bytes(), nil
	}
}

// resourceCandidates 显式配置优先，否则按音色名推断
func resourceCandidates(configured, voice string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	if configured = strings.TrimSpace(configured); configured != "" {
		return []string{configured}
	}

	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}
	return []string{defaultResource, seedResource}
}

func isResourceMismatchError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}
