// Package analyzer sends saved page documents to a generative AI backend and
// returns the extracted SEO keyword text.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/common/config"
	"github.com/edgecomet/blogkeywords/internal/metrics"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

// ErrNoFiles is returned when none of the requested documents could be read
var ErrNoFiles = errors.New("no valid files to process")

// File is one document attached to the keyword request
type File struct {
	Path     string
	Name     string
	MIMEType string
	Data     []byte
	Text     string // markdown sidecar, used by text-only backends
}

// Analyzer extracts keywords from documents
type Analyzer interface {
	ExtractKeywords(ctx context.Context, prompt string, files []File) (string, error)
}

// Backend performs a single generation request against a provider
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string, files []File) (string, error)
}

// Option configures a Client
type Option func(*Client)

// WithMetrics records analysis metrics on collector
func WithMetrics(collector *metrics.MetricsCollector) Option {
	return func(c *Client) { c.metrics = collector }
}

// WithSleep replaces the retry wait, mainly for tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// Client wraps a Backend with the file limit and retry policy
type Client struct {
	backend    Backend
	maxFiles   int
	maxRetries int
	retryDelay time.Duration
	metrics    *metrics.MetricsCollector
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *zap.Logger
}

var _ Analyzer = (*Client)(nil)

// NewClient creates a Client around backend
func NewClient(backend Backend, cfg config.AnalyzerConfig, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		backend:    backend,
		maxFiles:   cfg.MaxFiles,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay.ToDuration(),
		metrics:    metrics.NewNopCollector(),
		sleep:      sleepContext,
		logger:     logger,
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AnalyzeFiles keeps the first max_files paths, reads them and extracts keywords
func (c *Client) AnalyzeFiles(ctx context.Context, prompt string, paths []string) (string, error) {
	paths = limit(paths, c.maxFiles, c.logger)

	files, err := PrepareFiles(paths, c.logger)
	if err != nil {
		return "", err
	}
	return c.ExtractKeywords(ctx, prompt, files)
}

// ExtractKeywords sends prompt and files to the backend. Failed attempts are
// retried with a delay that doubles after each failure.
func (c *Client) ExtractKeywords(ctx context.Context, prompt string, files []File) (string, error) {
	if len(files) == 0 {
		return "", ErrNoFiles
	}
	files = limit(files, c.maxFiles, c.logger)

	c.logger.Info("Analyzing documents",
		zap.String("backend", c.backend.Name()),
		zap.Int("files", len(files)))

	start := time.Now()
	delay := c.retryDelay
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		text, err := c.backend.Generate(ctx, prompt, files)
		if err == nil {
			c.metrics.RecordAnalysis(c.backend.Name(), types.OutcomeSuccess, time.Since(start))
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, ErrNoDocumentText) {
			break
		}

		c.logger.Warn("Analysis attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxRetries),
			zap.Error(err))

		if attempt == c.maxRetries {
			break
		}

		c.metrics.RecordAnalysisRetry()
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
		delay *= 2
	}

	c.metrics.RecordAnalysis(c.backend.Name(), types.OutcomeError, time.Since(start))
	return "", fmt.Errorf("%s analysis failed: %w", c.backend.Name(), lastErr)
}

func limit[T any](items []T, maxFiles int, logger *zap.Logger) []T {
	if maxFiles > 0 && len(items) > maxFiles {
		logger.Info("Processing only the first files to avoid timeout issues",
			zap.Int("requested", len(items)),
			zap.Int("max_files", maxFiles))
		return items[:maxFiles]
	}
	return items
}

// PrepareFiles reads documents from disk. Missing or unreadable files are
// skipped with a warning; ErrNoFiles is returned when nothing is left.
func PrepareFiles(paths []string, logger *zap.Logger) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn("File not found, skipping", zap.String("file_path", path))
			} else {
				logger.Error("Failed to read file", zap.String("file_path", path), zap.Error(err))
			}
			continue
		}

		file := File{
			Path:     path,
			Name:     filepath.Base(path),
			MIMEType: MIMEType(path),
			Data:     data,
		}
		if text, err := os.ReadFile(TextSidecar(path)); err == nil {
			file.Text = string(text)
		}
		files = append(files, file)
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return files, nil
}

// MIMEType guesses the media type from the file extension
func MIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return "application/pdf"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// TextSidecar returns the path of the markdown text saved next to a document
func TextSidecar(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".md"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
