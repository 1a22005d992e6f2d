package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/pipeline"
	"github.com/edgecomet/blogkeywords/internal/workspace"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blog-keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	configPath = writeConfig(t, "workdir: /tmp/bk-test\nscrape:\n  max_articles: 2\n")
	t.Cleanup(func() { configPath = "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/bk-test", cfg.Workdir)
	assert.Equal(t, 2, cfg.Scrape.MaxArticles)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "nope.yaml")
	t.Cleanup(func() { configPath = "" })

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	configPath = ""

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Scrape.MaxArticles)
}

func TestNewApp_AnalyzerOptionalWithoutKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	configPath = writeConfig(t, "log:\n  level: error\n")
	workdir = t.TempDir()
	t.Cleanup(func() {
		configPath = ""
		workdir = ""
	})

	a, err := newApp(context.Background(), analyzerOptional)
	require.NoError(t, err)
	defer a.close()

	assert.Equal(t, filepath.Join(workdir, "scraped"), a.ws.Dir())

	_, err = a.session.Analyze(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrAnalyzerUnavailable)
}

func TestPrintArticles(t *testing.T) {
	var buf bytes.Buffer
	printArticles(&buf, &pipeline.Snapshot{
		Articles: []types.Article{
			{Index: 1, URL: "https://blog.example.com/a", Title: "A", Selected: true},
			{Index: 2, URL: "https://blog.example.com/b", Title: "B", Error: "HTTP 404"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Main page + 2 articles:")
	assert.Contains(t, out, "[x]  1. A  https://blog.example.com/a")
	assert.Contains(t, out, "[ ]  2. B  https://blog.example.com/b  (HTTP 404)")
}

func TestPrintArticles_None(t *testing.T) {
	var buf bytes.Buffer
	printArticles(&buf, &pipeline.Snapshot{})
	assert.Contains(t, buf.String(), "No article links found")
}

func TestPrintDocuments(t *testing.T) {
	ws, err := workspace.Open(filepath.Join(t.TempDir(), "scraped"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, ws.WriteBytes(ws.MainPage(), []byte("%PDF")))
	require.NoError(t, ws.WriteBytes(ws.ArticleFile(1, "https://blog.example.com/first-post"), []byte("%PDF")))

	var buf bytes.Buffer
	require.NoError(t, printDocuments(&buf, ws))

	out := buf.String()
	assert.Contains(t, out, "Documents saved in "+ws.Dir()+":")
	assert.Contains(t, out, "  main_page.pdf\n")
	assert.Contains(t, out, "  article_1_first-post.pdf\n")
}
