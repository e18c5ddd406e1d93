package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/config"
	"github.com/zhouzirui/echo/internal/volcengine"
)

const (
	sampleRateHz = 16000
	// 16kHz, 16bit, mono, 200ms = 6400 bytes
	chunkBytes = 6400
	// 结束后等待服务端最后一包的时间
	drainTimeout = 5 * time.Second
)

// AudioSource opens a raw PCM stream (s16le, 16kHz, mono).
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// VolcengineRecognizer 火山引擎大模型流式语音识别
type VolcengineRecognizer struct {
	cfg    config.SpeechConfig
	source AudioSource
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewVolcengineRecognizer returns ErrUnsupported when credentials are missing.
func NewVolcengineRecognizer(cfg config.SpeechConfig, source AudioSource, logger zerolog.Logger) (*VolcengineRecognizer, error) {
	if !cfg.Enabled || source == nil {
		return nil, ErrUnsupported
	}
	return &VolcengineRecognizer{
		cfg:    cfg,
		source: source,
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger: logger.With().Str("component", "asr").Logger(),
	}, nil
}

type asrParams struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec"`
		Rate     int    `json:"rate"`
		Bits     int    `json:"bits"`
		Channel  int    `json:"channel"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn"`
		EnablePunc     bool   `json:"enable_punc"`
		ShowUtterances bool   `json:"show_utterances"`
		ResultType     string `json:"result_type"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrResult struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  struct {
		Text       string `json:"text"`
		Utterances []struct {
			Text     string `json:"text"`
			Definite bool   `json:"definite"`
		} `json:"utterances"`
	} `json:"result"`
}

func (r asrResult) text() string {
	if r.Result.Text != "" {
		return r.Result.Text
	}
	parts := make([]string, 0, len(r.Result.Utterances))
	for _, u := range r.Result.Utterances {
		parts = append(parts, u.Text)
	}
	return strings.Join(parts, " ")
}

func (r asrResult) definite() bool {
	for _, u := range r.Result.Utterances {
		if u.Definite {
			return true
		}
	}
	return false
}

func (v *VolcengineRecognizer) params(connectID string) asrParams {
	var p asrParams
	p.User.UID = connectID
	p.Audio.Language = v.cfg.Language
	p.Audio.Format = "pcm"
	p.Audio.Codec = "raw"
	p.Audio.Rate = sampleRateHz
	p.Audio.Bits = 16
	p.Audio.Channel = 1
	p.Request.ModelName = "bigmodel"
	p.Request.EnableITN = true
	p.Request.EnablePunc = true
	p.Request.ShowUtterances = true
	p.Request.ResultType = "full"
	p.Request.EndWindowSize = 800
	return p
}

// Start opens the microphone and the recognition socket. A failure here means
// the device or service is busy.
func (v *VolcengineRecognizer) Start(ctx context.Context) (Stream, error) {
	audio, err := v.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}

	connectID := uuid.NewString()
	header := volcengine.Headers(v.cfg.AppID, v.cfg.AccessToken, v.cfg.ResourceID, connectID)

	conn, resp, err := v.dialer.DialContext(ctx, v.cfg.Endpoint, header)
	if err != nil {
		audio.Close()
		return nil, fmt.Errorf("failed to connect to ASR WebSocket: %w", err)
	}
	if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
		v.logger.Debug().Str("logid", logid).Msg("asr connected")
	}

	payload, err := sonic.Marshal(v.params(connectID))
	if err != nil {
		conn.Close()
		audio.Close()
		return nil, fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	first, err := volcengine.NewFullClientRequest(payload, true)
	if err == nil {
		err = conn.WriteMessage(websocket.BinaryMessage, first.Encode())
	}
	if err != nil {
		conn.Close()
		audio.Close()
		return nil, fmt.Errorf("failed to send ASR request: %w", err)
	}

	s := &volcStream{
		conn:   conn,
		audio:  audio,
		events: make(chan Event, 16),
		stop:   make(chan struct{}),
		logger: v.logger.With().Str("connect_id", connectID).Logger(),
	}
	go s.sendAudio()
	go s.receive()
	return s, nil
}

type volcStream struct {
	conn     *websocket.Conn
	audio    io.ReadCloser
	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

func (s *volcStream) Events() <-chan Event {
	return s.events
}

// Stop 关闭音频源，发送端随后补发最后一包。
func (s *volcStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.audio.Close()
		_ = s.conn.SetReadDeadline(time.Now().Add(drainTimeout))
	})
}

func (s *volcStream) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *volcStream) sendAudio() {
	buf := make([]byte, chunkBytes)
	// 首包占用序号 1，音频从 2 开始
	sequence := int32(2)

	for {
		n, err := io.ReadFull(s.audio, buf)
		last := err != nil

		msg, encErr := volcengine.NewAudioRequest(buf[:n], sequence, last)
		if encErr != nil {
			s.logger.Error().Err(encErr).Msg("encode audio chunk failed")
			return
		}
		if werr := s.conn.WriteMessage(websocket.BinaryMessage, msg.Encode()); werr != nil {
			if !s.stopped() {
				s.logger.Error().Err(werr).Msg("send audio chunk failed")
			}
			return
		}
		if last {
			if !s.stopped() && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Warn().Err(err).Msg("audio source ended")
			}
			return
		}
		sequence++
	}
}

func (s *volcStream) receive() {
	defer close(s.events)
	defer s.conn.Close()
	defer s.Stop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.stopped() {
				s.events <- Event{Kind: EventError, Err: fmt.Errorf("failed to read ASR response: %w", err)}
			}
			return
		}

		f, err := volcengine.Decode(data)
		if err != nil {
			s.events <- Event{Kind: EventError, Err: fmt.Errorf("failed to decode ASR message: %w", err)}
			return
		}

		switch f.Type {
		case volcengine.ErrorMessage:
			s.events <- Event{Kind: EventError, Err: fmt.Errorf("ASR error %d: %s", f.ErrorCode, string(f.Payload))}
			return

		case volcengine.FullServerResponse:
			var res asrResult
			if err := sonic.Unmarshal(f.Payload, &res); err != nil {
				s.logger.Warn().Err(err).Msg("failed to unmarshal ASR response")
				continue
			}
			if res.Code != 0 && res.Code != 20000000 {
				s.events <- Event{Kind: EventError, Err: fmt.Errorf("ASR API error %d: %s", res.Code, res.Message)}
				return
			}

			text := res.text()
			switch {
			case f.IsLast() || f.Sequence < 0:
				s.events <- Event{Kind: EventFinal, Text: text}
				return
			case res.definite():
				s.events <- Event{Kind: EventFinal, Text: text}
				return
			case text != "":
				s.events <- Event{Kind: EventInterim, Text: text}
			}
		}
	}
}
