// Package pattern provides the URL pattern matching used by the link filters.
//
// Pattern Matching Behavior:
//
//   - Substring (no prefix): Case-sensitive containment check
//     Example: "/category/" matches "https://blog.example.com/category/news"
//
//   - Wildcard (*): Case-insensitive pattern with * matching any characters,
//     anchored at both ends
//     Example: "*/shop/*" matches "https://example.com/SHOP/item"
//
//   - Regexp (~): Case-sensitive regular expression, unanchored
//     Example: "~/\d{4}/\d{2}/" matches "/2024/05/my-post"
//
//   - Regexp (~*): Case-insensitive regular expression
//     Example: "~*/(blog|news)/" matches "/Blog/hello"
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternType defines the type of pattern matching
type PatternType int

const (
	PatternTypeSubstring PatternType = iota
	PatternTypeWildcard
	PatternTypeRegexp
)

// Pattern represents a compiled pattern ready for matching
type Pattern struct {
	Original        string         // Original pattern string
	Type            PatternType    // Pattern type: Substring, Wildcard, or Regexp
	CleanPattern    string         // Pattern with prefix removed (for regexp)
	CaseInsensitive bool           // For ~* prefix
	compiledRegexp  *regexp.Regexp // Pre-compiled regexp (nil for substring/wildcard)
}

// DetectPatternType determines the pattern matching type
// Returns: PatternType, clean pattern (prefix removed), case-insensitive flag
func DetectPatternType(pattern string) (PatternType, string, bool) {
	if strings.HasPrefix(pattern, "~*") {
		return PatternTypeRegexp, pattern[2:], true
	}
	if strings.HasPrefix(pattern, "~") {
		return PatternTypeRegexp, pattern[1:], false
	}

	if strings.Contains(pattern, "*") {
		return PatternTypeWildcard, pattern, false
	}

	return PatternTypeSubstring, pattern, false
}

// Compile pre-compiles a pattern for efficient matching.
// Called once during configuration loading.
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	patternType, cleanPattern, caseInsensitive := DetectPatternType(pattern)

	p := &Pattern{
		Original:        pattern,
		Type:            patternType,
		CleanPattern:    cleanPattern,
		CaseInsensitive: caseInsensitive,
	}

	if patternType == PatternTypeRegexp {
		expr := cleanPattern
		if caseInsensitive {
			expr = "(?i)" + cleanPattern
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp pattern '%s': %w", pattern, err)
		}
		p.compiledRegexp = re
	}

	return p, nil
}

// MustCompile is like Compile but panics on error. Intended for built-in defaults.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Match tests if input matches the compiled pattern
func (p *Pattern) Match(input string) bool {
	if p == nil {
		return false
	}

	switch p.Type {
	case PatternTypeRegexp:
		if p.compiledRegexp == nil {
			return false
		}
		return p.compiledRegexp.MatchString(input)

	case PatternTypeWildcard:
		return MatchWildcard(strings.ToLower(input), strings.ToLower(p.CleanPattern))

	case PatternTypeSubstring:
		return strings.Contains(input, p.CleanPattern)

	default:
		return false
	}
}

// String returns the original pattern text
func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	return p.Original
}

// Set is an ordered list of compiled patterns
type Set []*Pattern

// CompileAll compiles every pattern, failing on the first invalid one
func CompileAll(patterns []string) (Set, error) {
	set := make(Set, 0, len(patterns))
	for _, raw := range patterns {
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		set = append(set, p)
	}
	return set, nil
}

// MatchAny reports whether any pattern in the set matches input
func (s Set) MatchAny(input string) bool {
	for _, p := range s {
		if p.Match(input) {
			return true
		}
	}
	return false
}

// MatchWildcard performs wildcard pattern matching on raw strings.
// The wildcard * matches any sequence of characters (including none).
//
// Examples:
//   - MatchWildcard("/blog/post", "/blog/*") → true
//   - MatchWildcard("document.pdf", "*.pdf") → true
//   - MatchWildcard("anything", "*") → true
func MatchWildcard(text, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return text == pattern
	}

	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]

	if !strings.HasSuffix(text, parts[len(parts)-1]) {
		return false
	}
	text = text[:len(text)-len(parts[len(parts)-1])]

	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == "" {
			continue
		}
		idx := strings.Index(text, parts[i])
		if idx == -1 {
			return false
		}
		text = text[idx+len(parts[i]):]
	}

	return true
}
