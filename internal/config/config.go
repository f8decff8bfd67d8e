// Package config loads runtime configuration from the environment, with
// a .env file honored in local development.
package config

import (
	"context"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-classifier/internal/classify"
)

// Config holds everything the binaries need to start.
type Config struct {
	// Port the API listens on.
	Port string

	// GCP settings. ProjectID empty means BigQuery persistence is off
	// and the in-memory repository is used.
	ProjectID string
	Dataset   string
	Bucket    string

	// AI provider settings. An empty value disables that provider.
	OllamaHost      string
	OllamaModel     string
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	AnthropicModel  string

	// JobQueueSize bounds the in-memory import queue.
	JobQueueSize int
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load(log zerolog.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		ProjectID:       os.Getenv("GOOGLE_CLOUD_PROJECT"),
		Dataset:         getEnv("BIGQUERY_DATASET", "expenses"),
		Bucket:          os.Getenv("GCS_BUCKET"),
		OllamaHost:      os.Getenv("OLLAMA_HOST"),
		OllamaModel:     os.Getenv("OLLAMA_MODEL"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     os.Getenv("GEMINI_MODEL"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  os.Getenv("ANTHROPIC_MODEL"),
		JobQueueSize:    getEnvInt("JOB_QUEUE_SIZE", 100),
	}
}

// Providers builds the classification chain in priority order: the local
// model first, then Gemini, then Anthropic. Providers without
// configuration are left out; an empty chain means rule-only
// classification.
func (c *Config) Providers(ctx context.Context, log zerolog.Logger) []classify.Provider {
	var providers []classify.Provider

	if c.OllamaHost != "" {
		providers = append(providers, classify.NewOllamaProvider(c.OllamaHost, c.OllamaModel))
	}

	if c.GeminiAPIKey != "" {
		p, err := NewGeminiFromEnv(ctx, c)
		if err != nil {
			log.Warn().Err(err).Msg("gemini provider disabled")
		} else {
			providers = append(providers, p)
		}
	}

	if c.AnthropicAPIKey != "" {
		providers = append(providers, classify.NewAnthropicProvider(c.AnthropicAPIKey, c.AnthropicModel))
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	log.Info().Strs("providers", names).Msg("classification chain configured")

	return providers
}

// NewGeminiFromEnv creates the Gemini provider. The genai client reads
// GEMINI_API_KEY from the environment itself.
func NewGeminiFromEnv(ctx context.Context, c *Config) (classify.Provider, error) {
	return classify.NewGeminiProvider(ctx, c.GeminiModel)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
