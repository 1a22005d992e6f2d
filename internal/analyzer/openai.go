package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/common/config"
)

// ErrNoDocumentText is returned when no file carries extracted text for a text-only backend
var ErrNoDocumentText = errors.New("no document text available")

// OpenAIBackend sends the extracted markdown of each document to a chat completion model
type OpenAIBackend struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
	logger      *zap.Logger
}

// NewOpenAIBackend creates a chat completion client for apiKey
func NewOpenAIBackend(apiKey string, cfg config.AnalyzerConfig, logger *zap.Logger) *OpenAIBackend {
	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	b := &OpenAIBackend{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: int(cfg.MaxOutputTokens),
		logger:    logger,
	}
	if cfg.Temperature != nil {
		b.temperature = *cfg.Temperature
	}
	if cfg.TopP != nil {
		b.topP = *cfg.TopP
	}
	return b
}

func (b *OpenAIBackend) Name() string {
	return config.BackendOpenAI
}

func (b *OpenAIBackend) Generate(ctx context.Context, prompt string, files []File) (string, error) {
	var sb strings.Builder
	sb.WriteString(prompt)

	included := 0
	for _, f := range files {
		if strings.TrimSpace(f.Text) == "" {
			b.logger.Warn("Document has no extracted text, skipping", zap.String("file", f.Name))
			continue
		}
		fmt.Fprintf(&sb, "\n\n--- Document: %s ---\n\n%s", f.Name, f.Text)
		included++
	}
	if included == 0 {
		return "", ErrNoDocumentText
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: sb.String(),
			},
		},
		Temperature: b.temperature,
		TopP:        b.topP,
		MaxTokens:   b.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
