package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr       string
	LogLevel       string
	RequestTimeout time.Duration
	Line           LineConfig
	OpenAI         OpenAIConfig
	Store          StoreConfig
	Translate      TranslateConfig
}

type LineConfig struct {
	ChannelAccessToken string
	ChannelSecret      string
	APIBaseURL         string
	EventMaxAge        time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type StoreConfig struct {
	Type          string // "file" or "memory"
	Path          string
	FlushDebounce time.Duration
}

type TranslateConfig struct {
	ContextDepth      int
	CacheCapacity     int
	ConsistencyWindow time.Duration
	RefreshLastOnHit  bool
}

func Load() (Config, error) {
	var cfg Config

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	reqTimeout, err := parseDuration(getEnv("HTTP_CLIENT_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_CLIENT_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = reqTimeout

	eventMaxAge, err := parseDuration(getEnv("LINE_EVENT_MAX_AGE", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse LINE_EVENT_MAX_AGE: %w", err)
	}
	cfg.Line = LineConfig{
		ChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		ChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		APIBaseURL:         getEnv("LINE_API_BASE_URL", "https://api.line.me"),
		EventMaxAge:        eventMaxAge,
	}

	llmTimeout, err := parseDuration(getEnv("OPENAI_TIMEOUT", "8s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse OPENAI_TIMEOUT: %w", err)
	}
	cfg.OpenAI = OpenAIConfig{
		APIKey:  getEnv("OPENAI_API_KEY", ""),
		BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		Timeout: llmTimeout,
	}

	flushDebounce, err := parseDuration(getEnv("STORE_FLUSH_DEBOUNCE", "3s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STORE_FLUSH_DEBOUNCE: %w", err)
	}
	cfg.Store = StoreConfig{
		Type:          getEnv("STORE_TYPE", "file"),
		Path:          getEnv("STORE_PATH", "data/conversations.json"),
		FlushDebounce: flushDebounce,
	}

	contextDepth, err := parseInt(getEnv("CONTEXT_DEPTH", "5"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CONTEXT_DEPTH: %w", err)
	}
	cacheCapacity, err := parseInt(getEnv("CACHE_CAPACITY", "200"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_CAPACITY: %w", err)
	}
	window, err := parseDuration(getEnv("CONSISTENCY_WINDOW", "10m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CONSISTENCY_WINDOW: %w", err)
	}
	refreshOnHit, err := parseBoolDefault(getEnv("REFRESH_LAST_ON_HIT", ""), false)
	if err != nil {
		return Config{}, fmt.Errorf("parse REFRESH_LAST_ON_HIT: %w", err)
	}
	cfg.Translate = TranslateConfig{
		ContextDepth:      contextDepth,
		CacheCapacity:     cacheCapacity,
		ConsistencyWindow: window,
		RefreshLastOnHit:  refreshOnHit,
	}

	return cfg, nil
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("duration is empty")
	}
	return time.ParseDuration(value)
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("number is empty")
	}
	return strconv.Atoi(value)
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

// parseBoolDefault parses optional boolean with default value.
func parseBoolDefault(value string, def bool) (bool, error) {
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}
