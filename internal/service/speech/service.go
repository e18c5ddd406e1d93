package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/echo/internal/config"
	"github.com/zhouzirui/echo/internal/model/speech"
)

const filePrefix = "speech_"

var (
	ErrEmptyText     = errors.New("text is required")
	ErrInvalidName   = errors.New("invalid audio file name")
	ErrAudioNotFound = errors.New("audio file not found")
)

// Service 语音合成服务：生成临时音频文件并按 TTL 清理
type Service struct {
	engine Engine
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewService 创建语音服务实例
func NewService(engine Engine, dir string, ttl time.Duration, logger zerolog.Logger) (*Service, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &Service{
		engine: engine,
		dir:    dir,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "speech").Logger(),
	}, nil
}

// NewEngine picks the synthesis engine named by cfg.TTSEngine. auto prefers
// Volcengine when credentials exist and falls back to the local command.
func NewEngine(server config.ServerConfig, sp config.SpeechConfig, logger zerolog.Logger) (Engine, error) {
	switch server.TTSEngine {
	case config.TTSEngineVolcengine:
		return NewVolcengineEngine(sp, logger)
	case config.TTSEngineCommand:
		return NewCommandEngine(server.TTSCommand)
	default:
		if e, err := NewVolcengineEngine(sp, logger); err == nil {
			return e, nil
		}
		return NewCommandEngine(server.TTSCommand)
	}
}

// EngineName 当前使用的引擎
func (s *Service) EngineName() string {
	return s.engine.Name()
}

// Synthesize 合成语音并写入临时目录
func (s *Service) Synthesize(ctx context.Context, text string) (*speech.AudioFile, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	if removed, err := s.Prune(); err != nil {
		s.logger.Warn().Err(err).Msg("prune audio files failed")
	} else if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("pruned audio files")
	}

	name := fmt.Sprintf("%s%s.%s", filePrefix, uuid.NewString(), s.engine.Format())
	path := filepath.Join(s.dir, name)
	if err := s.engine.Synthesize(ctx, text, path); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("synthesize with %s: %w", s.engine.Name(), err)
	}

	return &speech.AudioFile{
		Name:      name,
		Path:      path,
		Format:    s.engine.Format(),
		CreatedAt: s.now(),
	}, nil
}

// Prune 删除超过 TTL 的音频文件，返回删除数量
func (s *Service) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Open 打开已合成的音频文件，只接受本服务生成的文件名
func (s *Service) Open(name string) (*os.File, *speech.AudioFile, error) {
	if name == "" || name != filepath.Base(name) || !strings.HasPrefix(name, filePrefix) {
		return nil, nil, ErrInvalidName
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrAudioNotFound
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	return f, &speech.AudioFile{
		Name:      name,
		Path:      path,
		Format:    strings.TrimPrefix(filepath.Ext(name), "."),
		CreatedAt: info.ModTime(),
	}, nil
}
