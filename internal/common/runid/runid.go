// Package runid generates identifiers for fetch sessions.
package runid

import (
	"crypto/rand"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxLength matches the length of a UUID string
	MaxLength      = 36
	// PrefixLength is the length of the random prefix
	PrefixLength   = 5
	maxLabelLength = MaxLength - PrefixLength - 1
)

var (
	sanitizeRegex           = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	consecutiveHyphensRegex = regexp.MustCompile(`-+`)
)

// New creates a run ID for a fetch of targetURL: a random prefix followed by
// the sanitized host, e.g. "3fa9c-blog-example-com". Falls back to a UUID when
// the URL has no usable host.
func New(targetURL string) string {
	label := ""
	if parsed, err := url.Parse(targetURL); err == nil {
		label = sanitize(parsed.Hostname())
	}

	if label == "" {
		return uuid.New().String()
	}
	if len(label) > maxLabelLength {
		label = strings.TrimSuffix(label[:maxLabelLength], "-")
	}

	return randomPrefix() + "-" + label
}

func sanitize(s string) string {
	s = strings.NewReplacer(".", "-", " ", "-").Replace(strings.ToLower(s))
	s = sanitizeRegex.ReplaceAllString(s, "")
	s = consecutiveHyphensRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func randomPrefix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return uuid.New().String()[:PrefixLength]
	}
	return hex.EncodeToString(buf)[:PrefixLength]
}
