package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

const (
	// LocalBackendURL 本地开发时使用的后端地址。
	LocalBackendURL = "http://127.0.0.1:5000"
	// RemoteBackendURL 其他任何主机使用的线上后端地址。
	RemoteBackendURL = "https://echo-backend-to1l.onrender.com"
)

// Config 聚合客户端与后端的全部配置项。
type Config struct {
	Client ClientConfig
	Speech SpeechConfig
	Server ServerConfig
	AI     AIConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Client: client, Speech: speech, Server: server, AI: ai}, nil
}

// ClientConfig 描述语音客户端配置。
type ClientConfig struct {
	Host      string
	BaseURL   string
	PrefsPath string
}

// BackendURLForHost maps the host the client runs against to one of the two
// fixed backend addresses.
func BackendURLForHost(host string) string {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1":
		return LocalBackendURL
	default:
		return RemoteBackendURL
	}
}

func loadClientConfig() (ClientConfig, error) {
	host := getEnvOrDefault("ECHO_HOST", "localhost")

	prefsPath := strings.TrimSpace(os.Getenv("ECHO_PREFS_PATH"))
	if prefsPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return ClientConfig{}, fmt.Errorf("resolve user config dir: %w", err)
		}
		prefsPath = filepath.Join(dir, "echo", "prefs.json")
	}

	return ClientConfig{
		Host:      host,
		BaseURL:   BackendURLForHost(host),
		PrefsPath: prefsPath,
	}, nil
}

// SpeechConfig 描述流式语音识别相关配置
type SpeechConfig struct {
	AppID       string
	AccessToken string
	ResourceID  string
	Endpoint    string
	Language    string
	MicDevice   string
	Enabled     bool

	TTSEndpoint   string
	TTSResourceID string
	TTSVoice      string
}

func loadSpeechConfig() (SpeechConfig, error) {
	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))

	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	if accessToken == "" {
		accessToken = strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	}

	return SpeechConfig{
		AppID:       appID,
		AccessToken: accessToken,
		ResourceID:  getEnvOrDefault("SPEECH_ASR_RESOURCE_ID", "volc.bigasr.sauc.duration"),
		Endpoint:    getEnvOrDefault("SPEECH_ASR_ENDPOINT", "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_async"),
		Language:    getEnvOrDefault("SPEECH_ASR_LANGUAGE", "en-US"),
		MicDevice:   strings.TrimSpace(os.Getenv("ECHO_MIC_DEVICE")),
		Enabled:     appID != "" && accessToken != "",

		// TTSResourceID 为空时按音色推断
		TTSEndpoint:   getEnvOrDefault("SPEECH_TTS_ENDPOINT", "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"),
		TTSResourceID: strings.TrimSpace(os.Getenv("SPEECH_TTS_RESOURCE_ID")),
		TTSVoice:      getEnvOrDefault("SPEECH_TTS_VOICE", "en_female_amy_jupiter_bigtts"),
	}, nil
}

// TTS 引擎选择
const (
	TTSEngineAuto       = "auto"
	TTSEngineCommand    = "command"
	TTSEngineVolcengine = "volcengine"

	// DefaultWikipediaURL 维基百科 REST API 根地址
	DefaultWikipediaURL = "https://en.wikipedia.org/api/rest_v1"
)

// ServerConfig 描述参考后端的 HTTP 服务配置。
type ServerConfig struct {
	Addr       string
	TempDir    string
	TTSEngine  string
	TTSCommand string
	AudioTTL   time.Duration

	// WebLookup 无大模型时，未识别的问题查询维基百科摘要
	WebLookup    bool
	WikipediaURL string
}

func loadServerConfig() (ServerConfig, error) {
	addr, err := parseAddr(getEnvOrDefault("PORT", "5000"))
	if err != nil {
		return ServerConfig{}, err
	}

	ttl := 300
	if override, err := parseOptionalIntEnv("ECHO_AUDIO_TTL_SECONDS"); err != nil {
		return ServerConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ServerConfig{}, fmt.Errorf("invalid ECHO_AUDIO_TTL_SECONDS value %d: must be positive", *override)
		}
		ttl = *override
	}

	engine := strings.ToLower(getEnvOrDefault("ECHO_TTS_ENGINE", TTSEngineAuto))
	switch engine {
	case TTSEngineAuto, TTSEngineCommand, TTSEngineVolcengine:
	default:
		return ServerConfig{}, fmt.Errorf("invalid ECHO_TTS_ENGINE value %q: want auto, command or volcengine", engine)
	}

	webLookup, err := parseBoolEnv("ECHO_WEB_LOOKUP", true)
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Addr:         addr,
		TempDir:      getEnvOrDefault("ECHO_TEMP_DIR", filepath.Join(os.TempDir(), "echo-audio")),
		TTSEngine:    engine,
		TTSCommand:   getEnvOrDefault("ECHO_TTS_COMMAND", "espeak-ng"),
		AudioTTL:     time.Duration(ttl) * time.Second,
		WebLookup:    webLookup,
		WikipediaURL: getEnvOrDefault("ECHO_WIKIPEDIA_URL", DefaultWikipediaURL),
	}, nil
}

func parseAddr(port string) (string, error) {
	if strings.Contains(port, ":") {
		// 允许直接传入 ":5000" 或 "127.0.0.1:5000"。
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	MaxTokens    *int
	HistoryLimit int

	// IntentLLMEnabled 使用模型识别意图，否则只用关键词
	IntentLLMEnabled bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + Model or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit := 10
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 {
			historyLimit = 0
		} else {
			historyLimit = *override
		}
	}

	intentLLM, err := parseBoolEnv("AI_INTENT_LLM", false)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("Model")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		HistoryLimit: historyLimit,

		IntentLLMEnabled: intentLLM,
	}, nil
}

// LogLevel returns LOG_LEVEL, defaulting to "info".
func LogLevel() string {
	return strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return parsed, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
