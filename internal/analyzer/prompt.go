package analyzer

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

// DefaultPrompt asks for SEO and paid media keywords across all documents,
// answered in the documents' main language.
//
//go:embed default_prompt.txt
var DefaultPrompt string

// LoadPrompt returns the prompt stored at path, or DefaultPrompt when path is empty
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return DefaultPrompt, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return string(data), nil
}
