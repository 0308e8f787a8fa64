package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	OpenAIKey         string
	OpenAIEndpoint    string `validate:"omitempty,url"`
	OpenAIModel       string `validate:"required"`
	OpenAIVisionModel string `validate:"required"`
	AnthropicKey      string
	AnthropicBaseURL  string `validate:"omitempty,url"`
	AnthropicModel    string `validate:"required"`
	Database          string `validate:"required"`
	Port              string `validate:"required,numeric"`
	LogLevel          string `validate:"oneof=debug info warn error"`

	// ProviderTimeout bounds each individual provider call.
	ProviderTimeout time.Duration `validate:"gt=0"`
	ProviderRPS     float64       `validate:"gt=0"`
	ProviderBurst   int           `validate:"gte=1"`

	// HeuristicOnFailure persists heuristic cards when every provider fails.
	HeuristicOnFailure bool
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() (Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	timeout, err := getDuration("PROVIDER_TIMEOUT", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	rps, err := getFloat("PROVIDER_RPS", 1)
	if err != nil {
		return Config{}, err
	}
	burst, err := getInt("PROVIDER_BURST", 3)
	if err != nil {
		return Config{}, err
	}
	heuristic, err := getBool("FALLBACK_CARDS_ON_FAILURE", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint:     getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIVisionModel:  getEnv("OPENAI_VISION_MODEL", "gpt-4o-mini"),
		AnthropicKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicBaseURL:   os.Getenv("ANTHROPIC_BASE_URL"),
		AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		Database:           getEnv("DATABASE_PATH", "./data/notes.db"),
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ProviderTimeout:    timeout,
		ProviderRPS:        rps,
		ProviderBurst:      burst,
		HeuristicOnFailure: heuristic,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure database dir %s: %w", cfg.Database, err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
