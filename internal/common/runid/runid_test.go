package runid

import (
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var prefixed = regexp.MustCompile(`^[0-9a-f]{5}-[a-z0-9-]+$`)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		suffix string
	}{
		{name: "plain host", url: "https://blog.example.com/", suffix: "-blog-example-com"},
		{name: "port dropped", url: "http://Blog.Example.com:8080/posts", suffix: "-blog-example-com"},
		{name: "idn characters removed", url: "https://bücher.example/", suffix: "-bcher-example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := New(tt.url)
			assert.Regexp(t, prefixed, id)
			assert.True(t, strings.HasSuffix(id, tt.suffix), id)
			assert.LessOrEqual(t, len(id), MaxLength)
		})
	}
}

func TestNew_FallbackToUUID(t *testing.T) {
	for _, raw := range []string{"", "/relative/path", "://bad"} {
		id := New(raw)
		_, err := uuid.Parse(id)
		require.NoError(t, err, raw)
	}
}

func TestNew_LongHostTruncated(t *testing.T) {
	id := New("https://" + strings.Repeat("verylonghostname.", 5) + "com/")
	assert.LessOrEqual(t, len(id), MaxLength)
	assert.False(t, strings.HasSuffix(id, "-"))
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id := New("https://blog.example.com/")
		assert.False(t, seen[id], "duplicate run id %s", id)
		seen[id] = true
	}
}
