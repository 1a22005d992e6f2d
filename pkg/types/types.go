package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Session status values reported by the pipeline and the API
const (
	StatusReady      = "Ready"
	StatusProcessing = "Processing"
)

// NoKeywordsYet is the keyword text of a session that has not been analyzed
const NoKeywordsYet = "No keywords found yet"

// PageKind distinguishes the blog main page from the articles linked from it
type PageKind string

const (
	PageKindMain    PageKind = "main"
	PageKindArticle PageKind = "article"
)

// Fetch outcome values used by metrics and page events
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeCacheHit = "cache_hit"
	OutcomeSkipped  = "skipped"
)

// Compression algorithm constants
const (
	CompressionNone   = "none"   // No compression
	CompressionSnappy = "snappy" // Snappy compression (default)
	CompressionLZ4    = "lz4"    // LZ4 compression
)

// Compression marker prefixes stored in front of cached payloads
const (
	MarkerRaw    byte = 0
	MarkerSnappy byte = 1
	MarkerLZ4    byte = 2
)

// CompressionMinSize is the minimum content size in bytes for compression to be applied.
// Content below this size is stored raw.
const CompressionMinSize = 1024

// SEO extraction limits
const (
	MaxSEOTitleLength        = 500
	MaxMetaDescriptionLength = 1000
	MaxMetaKeywordsLength    = 1000
	MaxHeadingLength         = 300
	MaxHeadingsPerLevel      = 10
	MaxCanonicalURLLength    = 2048
)

// Article is a page linked from the blog main page
type Article struct {
	Index    int    `json:"index"` // 1-based position in discovery order
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	File     string `json:"file,omitempty"` // saved document path, empty when saving failed
	Selected bool   `json:"selected"`
	Error    string `json:"error,omitempty"`
}

// Saved reports whether the article document exists in the workspace
func (a *Article) Saved() bool {
	return a.File != ""
}

// PageSEO holds the SEO metadata extracted from a page
type PageSEO struct {
	Title           string   `json:"title,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	MetaKeywords    string   `json:"meta_keywords,omitempty"`
	CanonicalURL    string   `json:"canonical_url,omitempty"`
	Language        string   `json:"language,omitempty"`
	H1s             []string `json:"h1,omitempty"`
	H2s             []string `json:"h2,omitempty"`
	H3s             []string `json:"h3,omitempty"`
	LinksTotal      int      `json:"links_total"`
	LinksInternal   int      `json:"links_internal"`
	LinksExternal   int      `json:"links_external"`
}

// Duration wraps time.Duration with extended YAML parsing support for days and weeks
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for extended duration formats
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON accepts both numbers (nanoseconds) and strings ("15s", "24h", "30d", "2w").
func (d *Duration) UnmarshalJSON(data []byte) error {
	var ns int64
	if err := json.Unmarshal(data, &ns); err == nil {
		*d = Duration(ns)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string or number, got %s", string(data))
	}

	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON implements json.Marshaler for Duration.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// ToDuration converts types.Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer for Duration
func (d Duration) String() string {
	return time.Duration(d).String()
}

// ParseDuration parses standard Go durations plus the d (days) and w (weeks) suffixes
func ParseDuration(s string) (time.Duration, error) {
	dur, err := time.ParseDuration(s)
	if err == nil {
		return dur, nil
	}

	dur, err = parseExtendedDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return dur, nil
}

var extendedDurationPattern = regexp.MustCompile(`^(-?)(\d+(?:\.\d+)?)(d|w)$`)

// parseExtendedDuration parses duration strings with extended suffixes: d (days), w (weeks)
// Examples: "30d", "2w", "1.5d"
func parseExtendedDuration(s string) (time.Duration, error) {
	matches := extendedDurationPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid format, expected format like '30d' or '2w'")
	}

	value, err := strconv.ParseFloat(matches[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %w", err)
	}
	if matches[1] == "-" {
		value = -value
	}

	switch matches[3] {
	case "d":
		return time.Duration(value * float64(24*time.Hour)), nil
	case "w":
		return time.Duration(value * float64(7*24*time.Hour)), nil
	default:
		return 0, fmt.Errorf("unsupported suffix %q", matches[3])
	}
}
