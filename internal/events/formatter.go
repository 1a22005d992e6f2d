package events

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTemplate is the tab-separated line written when no template is configured
const DefaultTemplate = "{timestamp}\t{run_id}\t{kind}\t{url}\t{status_code}\t{outcome}\t{bytes}\t{duration}\t{cached}\t{error_message}"

type fieldFunc func(e *PageEvent) string

var fields = map[string]fieldFunc{
	"timestamp":     func(e *PageEvent) string { return e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z") },
	"run_id":        func(e *PageEvent) string { return formatString(e.RunID) },
	"url":           func(e *PageEvent) string { return formatString(e.URL) },
	"kind":          func(e *PageEvent) string { return formatString(string(e.Kind)) },
	"status_code":   func(e *PageEvent) string { return strconv.Itoa(e.StatusCode) },
	"bytes":         func(e *PageEvent) string { return strconv.Itoa(e.Bytes) },
	"duration":      func(e *PageEvent) string { return strconv.FormatFloat(e.Duration.Seconds(), 'f', 3, 64) },
	"outcome":       func(e *PageEvent) string { return formatString(e.Outcome) },
	"cached":        func(e *PageEvent) string { return strconv.FormatBool(e.Cached) },
	"title":         func(e *PageEvent) string { return formatString(e.Title) },
	"file":          func(e *PageEvent) string { return formatString(e.File) },
	"error_message": func(e *PageEvent) string { return formatString(e.ErrorMessage) },
}

type segment struct {
	literal string
	field   fieldFunc
}

// TemplateFormatter renders events from a template with {placeholder} fields
type TemplateFormatter struct {
	template string
	segments []segment
}

// NewTemplateFormatter parses the template. Unknown or malformed placeholders are errors.
func NewTemplateFormatter(template string) (*TemplateFormatter, error) {
	if template == "" {
		return nil, fmt.Errorf("template cannot be empty")
	}

	var segments []segment
	rest := template
	offset := 0
	for {
		start := strings.IndexByte(rest, '{')
		if start == -1 {
			if rest != "" {
				segments = append(segments, segment{literal: rest})
			}
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end == -1 {
			return nil, fmt.Errorf("unclosed placeholder at position %d", offset+start)
		}
		end += start

		name := rest[start+1 : end]
		if name == "" {
			return nil, fmt.Errorf("empty placeholder at position %d", offset+start)
		}
		fn, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("unknown placeholder {%s}", name)
		}

		if start > 0 {
			segments = append(segments, segment{literal: rest[:start]})
		}
		segments = append(segments, segment{field: fn})

		offset += end + 1
		rest = rest[end+1:]
	}

	return &TemplateFormatter{template: template, segments: segments}, nil
}

// Template returns the original template string
func (f *TemplateFormatter) Template() string {
	return f.template
}

// Format renders the event
func (f *TemplateFormatter) Format(event *PageEvent) string {
	var b strings.Builder
	for _, s := range f.segments {
		if s.field != nil {
			b.WriteString(s.field(event))
		} else {
			b.WriteString(s.literal)
		}
	}
	return b.String()
}

var stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)

// formatString quotes and escapes s, "-" when empty
func formatString(s string) string {
	if s == "" {
		return "-"
	}
	return `"` + stringEscaper.Replace(s) + `"`
}
