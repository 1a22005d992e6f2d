package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
)

// ParseTarget parses a user-supplied page URL. Only absolute http(s) URLs are accepted.
func ParseTarget(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("url is empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q (must be http or https)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("url %q has no host", rawURL)
	}

	return parsed, nil
}

// SameHost reports whether both URLs share exactly the same host and port.
// Subdomains are different hosts.
func SameHost(a, b *url.URL) bool {
	if a == nil || b == nil || a.Host == "" {
		return false
	}
	return strings.EqualFold(a.Host, b.Host)
}

// ResolveLink resolves an href found on a page against the page URL.
// Returns false for hrefs that do not point at another document: empty,
// in-page fragments, and javascript:, mailto:, tel:, data: links.
// The fragment of the resolved URL is removed.
func ResolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}

	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return nil, false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, false
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""

	return resolved, true
}

// PathBase returns the last element of the URL path, or "" for the root and
// directory-style paths ending in a slash.
func PathBase(u *url.URL) string {
	if u == nil || u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return ""
	}
	return path.Base(u.Path)
}

var slugExtension = regexp.MustCompile(`\.(html?|php|aspx?)$`)

// TitleFromURL derives a human readable title from the URL slug:
// "/blog/my-first_post.html" becomes "My First Post".
func TitleFromURL(u *url.URL) string {
	slug := PathBase(u)
	if slug == "" && u != nil {
		slug = path.Base(strings.TrimSuffix(u.Path, "/"))
	}
	if slug == "" || slug == "/" || slug == "." {
		return ""
	}

	slug = slugExtension.ReplaceAllString(slug, "")
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)

	words := strings.Fields(slug)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
