package htmlprocessor

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// ToMarkdown converts cleaned HTML to markdown. Links are kept inline and lines are not wrapped.
func ToMarkdown(contentHTML string) (string, error) {
	if strings.TrimSpace(contentHTML) == "" {
		return "", nil
	}

	md, err := htmltomarkdown.ConvertString(contentHTML)
	if err != nil {
		return "", fmt.Errorf("failed to convert html to markdown: %w", err)
	}

	md = strings.ReplaceAll(md, "\r\n", "\n")
	md = excessBlankLines.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md), nil
}
