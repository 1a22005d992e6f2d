package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/edgecomet/blogkeywords/internal/common/config"
)

// ErrEmptyResponse is returned when the model produced no text
var ErrEmptyResponse = errors.New("empty response from model")

// GeminiBackend sends documents inline to the Gemini API
type GeminiBackend struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiBackend creates a Gemini client for apiKey
func NewGeminiBackend(ctx context.Context, apiKey string, cfg config.AnalyzerConfig) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiBackend{
		client: client,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
	}, nil
}

func (g *GeminiBackend) Name() string {
	return config.BackendGemini
}

// Generate sends the prompt followed by every file as inline data in one user turn
func (g *GeminiBackend) Generate(ctx context.Context, prompt string, files []File) (string, error) {
	parts := make([]*genai.Part, 0, len(files)+1)
	parts = append(parts, genai.NewPartFromText(prompt))
	for _, f := range files {
		parts = append(parts, genai.NewPartFromBytes(f.Data, f.MIMEType))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.config)
	if err != nil {
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
