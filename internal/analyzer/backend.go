package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/common/config"
)

const defaultEnvFile = ".env"

// ErrMissingAPIKey is returned when no API key is configured for the backend
var ErrMissingAPIKey = errors.New("no API key found")

// NewBackend creates the backend selected by analyzer.backend
func NewBackend(ctx context.Context, cfg config.AnalyzerConfig, logger *zap.Logger) (Backend, error) {
	apiKey, err := ResolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendGemini:
		return NewGeminiBackend(ctx, apiKey, cfg)
	case config.BackendOpenAI:
		return NewOpenAIBackend(apiKey, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown analyzer backend: %s", cfg.Backend)
	}
}

// ResolveAPIKey returns analyzer.api_key, or the value of analyzer.api_key_env
// after loading the env file. A missing default .env file is not an error.
func ResolveAPIKey(cfg config.AnalyzerConfig) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}

	envFile := cfg.EnvFile
	if envFile == "" {
		envFile = defaultEnvFile
	}
	// godotenv never overrides variables already set in the environment
	if err := godotenv.Load(envFile); err != nil {
		if cfg.EnvFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return "", fmt.Errorf("%w: set %s in the environment or in %s", ErrMissingAPIKey, cfg.APIKeyEnv, envFile)
	}
	return apiKey, nil
}
