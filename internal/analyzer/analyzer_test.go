package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/common/config"
)

type fakeBackend struct {
	mu      sync.Mutex
	errs    []error // returned in order before succeeding
	text    string
	calls   int
	lastLen int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Generate(_ context.Context, _ string, files []File) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastLen = len(files)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	return f.text, nil
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newClient(backend Backend, rec *sleepRecorder) *Client {
	return NewClient(backend, config.Default().Analyzer, zap.NewNop(), WithSleep(rec.sleep))
}

func someFiles(n int) []File {
	files := make([]File, n)
	for i := range files {
		files[i] = File{Name: "doc.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")}
	}
	return files
}

func TestExtractKeywords_Success(t *testing.T) {
	backend := &fakeBackend{text: "seo keywords"}
	rec := &sleepRecorder{}

	text, err := newClient(backend, rec).ExtractKeywords(context.Background(), "prompt", someFiles(2))
	require.NoError(t, err)

	assert.Equal(t, "seo keywords", text)
	assert.Equal(t, 1, backend.calls)
	assert.Empty(t, rec.delays)
}

func TestExtractKeywords_RetriesWithDoublingDelay(t *testing.T) {
	backend := &fakeBackend{errs: []error{errors.New("503"), errors.New("503")}, text: "finally"}
	rec := &sleepRecorder{}

	text, err := newClient(backend, rec).ExtractKeywords(context.Background(), "prompt", someFiles(1))
	require.NoError(t, err)

	assert.Equal(t, "finally", text)
	assert.Equal(t, 3, backend.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestExtractKeywords_GivesUpAfterMaxRetries(t *testing.T) {
	last := errors.New("quota exceeded")
	backend := &fakeBackend{errs: []error{errors.New("a"), errors.New("b"), last, errors.New("never")}}
	rec := &sleepRecorder{}

	_, err := newClient(backend, rec).ExtractKeywords(context.Background(), "prompt", someFiles(1))
	require.Error(t, err)

	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, backend.calls)
	assert.Len(t, rec.delays, 2)
}

func TestExtractKeywords_NoDocumentTextIsNotRetried(t *testing.T) {
	backend := &fakeBackend{errs: []error{ErrNoDocumentText}}
	rec := &sleepRecorder{}

	_, err := newClient(backend, rec).ExtractKeywords(context.Background(), "prompt", someFiles(1))
	assert.ErrorIs(t, err, ErrNoDocumentText)
	assert.Equal(t, 1, backend.calls)
}

func TestExtractKeywords_ContextCancelledDuringWait(t *testing.T) {
	backend := &fakeBackend{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	client := NewClient(backend, config.Default().Analyzer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := client.ExtractKeywords(ctx, "prompt", someFiles(1))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, backend.calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExtractKeywords_NoFiles(t *testing.T) {
	_, err := newClient(&fakeBackend{}, &sleepRecorder{}).ExtractKeywords(context.Background(), "prompt", nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestExtractKeywords_LimitsFiles(t *testing.T) {
	backend := &fakeBackend{text: "ok"}

	_, err := newClient(backend, &sleepRecorder{}).ExtractKeywords(context.Background(), "prompt", someFiles(8))
	require.NoError(t, err)
	assert.Equal(t, 5, backend.lastLen)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestAnalyzeFiles_TruncatesBeforeReading(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "missing.pdf")}
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf"} {
		paths = append(paths, writeFile(t, dir, name, "%PDF"))
	}

	backend := &fakeBackend{text: "ok"}
	_, err := newClient(backend, &sleepRecorder{}).AnalyzeFiles(context.Background(), "prompt", paths)
	require.NoError(t, err)

	assert.Equal(t, 4, backend.lastLen)
}

func TestAnalyzeFiles_NothingReadable(t *testing.T) {
	backend := &fakeBackend{text: "ok"}
	_, err := newClient(backend, &sleepRecorder{}).AnalyzeFiles(context.Background(), "prompt",
		[]string{filepath.Join(t.TempDir(), "gone.pdf")})

	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Equal(t, 0, backend.calls)
}

func TestPrepareFiles(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "main_page.pdf", "%PDF-1.3")
	writeFile(t, dir, "main_page.md", "# Blog")
	other := writeFile(t, dir, "notes.unknownext", "raw")

	files, err := PrepareFiles([]string{pdf, filepath.Join(dir, "missing.pdf"), other}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "main_page.pdf", files[0].Name)
	assert.Equal(t, "application/pdf", files[0].MIMEType)
	assert.Equal(t, []byte("%PDF-1.3"), files[0].Data)
	assert.Equal(t, "# Blog", files[0].Text)

	assert.Equal(t, "application/octet-stream", files[1].MIMEType)
	assert.Empty(t, files[1].Text)
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "application/pdf", MIMEType("/tmp/a.pdf"))
	assert.Equal(t, "application/pdf", MIMEType("/tmp/A.PDF"))
	assert.Equal(t, "application/octet-stream", MIMEType("/tmp/a"))
	assert.Equal(t, "/tmp/a.md", TextSidecar("/tmp/a.pdf"))
}

func TestLoadPrompt(t *testing.T) {
	def, err := LoadPrompt("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompt, def)
	assert.Contains(t, DefaultPrompt, "Palabras clave SEO extraídas")
	assert.Contains(t, DefaultPrompt, "Paid Media")

	dir := t.TempDir()
	custom, err := LoadPrompt(writeFile(t, dir, "prompt.txt", "List keywords."))
	require.NoError(t, err)
	assert.Equal(t, "List keywords.", custom)

	_, err = LoadPrompt(writeFile(t, dir, "empty.txt", "  \n"))
	assert.Error(t, err)

	_, err = LoadPrompt(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
