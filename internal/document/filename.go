package document

import (
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxFilenameLength = 100
	// NAME_MAX is 255 bytes; the rest is left for an extension and a temp suffix
	maxFilenameBytes  = 240
)

// SafeFilename derives a filesystem-safe name from a URL: the last path element,
// or the host with dots replaced by underscores when the path has none. Only
// letters, digits and "._- " survive; an empty result becomes "webpage". The
// prefix is joined with "_" and the whole name is capped at 100 characters and
// at maxFilenameBytes bytes, cut on a character boundary.
func SafeFilename(rawURL, prefix string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		if u.Path != "" && !strings.HasSuffix(u.Path, "/") {
			name = path.Base(u.Path)
		}
		if name == "" {
			name = strings.ReplaceAll(u.Host, ".", "_")
		}
	}

	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("._- ", r) {
			return r
		}
		return -1
	}, name)
	if name == "" {
		name = "webpage"
	}

	if prefix != "" {
		name = prefix + "_" + name
	}

	if runes := []rune(name); len(runes) > maxFilenameLength {
		name = string(runes[:maxFilenameLength])
	}
	for len(name) > maxFilenameBytes {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return name
}
