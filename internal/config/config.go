// Package config reads runtime settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr    string
	DBPath        string
	KnowledgePath string // empty means the embedded table
	StaticDir     string

	APIKey             string
	BaseURL            string
	Model              string
	Temperature        float64
	MaxTokens          int
	GenerationTimeout  time.Duration
	HistoryTokenBudget int

	TranscriptionModel    string
	TranscriptionLanguage string

	Debug bool
}

func Default() Config {
	return Config{
		ListenAddr:            ":8100",
		DBPath:                "chat_history.db",
		StaticDir:             "web",
		Model:                 "gpt-4o-mini",
		Temperature:           0,
		MaxTokens:             150,
		GenerationTimeout:     20 * time.Second,
		HistoryTokenBudget:    2000,
		TranscriptionModel:    "whisper-1",
		TranscriptionLanguage: "en",
	}
}

// Load reads .env files (missing files are ignored) and then the process
// environment. Variables already set in the environment win over .env.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, starting from Default.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("LISTEN_ADDR", &cfg.ListenAddr)
	str("CHAT_DB_PATH", &cfg.DBPath)
	str("KNOWLEDGE_BASE_PATH", &cfg.KnowledgePath)
	str("STATIC_DIR", &cfg.StaticDir)
	str("OPENAI_API_KEY", &cfg.APIKey)
	str("OPENAI_BASE_URL", &cfg.BaseURL)
	str("OPENAI_MODEL", &cfg.Model)
	str("TRANSCRIPTION_MODEL", &cfg.TranscriptionModel)
	str("TRANSCRIPTION_LANGUAGE", &cfg.TranscriptionLanguage)

	var err error
	if v := getenv("LLM_TEMPERATURE"); v != "" {
		if cfg.Temperature, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, fmt.Errorf("invalid LLM_TEMPERATURE %q: %w", v, err)
		}
	}
	if v := getenv("LLM_MAX_TOKENS"); v != "" {
		if cfg.MaxTokens, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("invalid LLM_MAX_TOKENS %q: %w", v, err)
		}
	}
	if v := getenv("HISTORY_TOKEN_BUDGET"); v != "" {
		if cfg.HistoryTokenBudget, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("invalid HISTORY_TOKEN_BUDGET %q: %w", v, err)
		}
	}
	if v := getenv("GENERATION_TIMEOUT"); v != "" {
		if cfg.GenerationTimeout, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("invalid GENERATION_TIMEOUT %q: %w", v, err)
		}
	}
	if v := getenv("DEBUG"); v != "" {
		if cfg.Debug, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("invalid DEBUG %q: %w", v, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	// A custom base URL usually points at a local OpenAI-compatible server
	// that ignores the key.
	if c.APIKey == "" && c.BaseURL == "" {
		return errors.New("OPENAI_API_KEY is not set")
	}
	if c.Model == "" {
		return errors.New("OPENAI_MODEL must not be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %v", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must not be negative, got %d", c.MaxTokens)
	}
	if c.HistoryTokenBudget < 0 {
		return fmt.Errorf("HISTORY_TOKEN_BUDGET must not be negative, got %d", c.HistoryTokenBudget)
	}
	if c.GenerationTimeout < 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must not be negative, got %s", c.GenerationTimeout)
	}
	return nil
}
