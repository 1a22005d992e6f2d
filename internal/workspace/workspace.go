// Package workspace manages the directory holding the documents of one session.
package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/document"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

const (
	MainPageFile = "main_page.pdf"
	ManifestFile = "manifest.json"

	articlePrefix = "article_"
	documentExt   = ".pdf"
	tempSuffix    = ".tmp"
)

// Workspace is a directory of generated documents
type Workspace struct {
	dir    string
	logger *zap.Logger
}

// Open creates dir if needed and returns a Workspace over it
func Open(dir string, logger *zap.Logger) (*Workspace, error) {
	if dir == "" {
		return nil, fmt.Errorf("workspace directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", dir, err)
	}
	return &Workspace{dir: dir, logger: logger}, nil
}

// Dir returns the workspace directory
func (w *Workspace) Dir() string {
	return w.dir
}

// MainPage returns the path of the main page document
func (w *Workspace) MainPage() string {
	return filepath.Join(w.dir, MainPageFile)
}

// ArticleFile returns the document path of the n-th (1-based) article
func (w *Workspace) ArticleFile(n int, articleURL string) string {
	name := document.SafeFilename(articleURL, articlePrefix+strconv.Itoa(n))
	return filepath.Join(w.dir, name+documentExt)
}

// Write renders a document through render and stores it atomically at path
func (w *Workspace) Write(path string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	return w.WriteBytes(path, buf.Bytes())
}

// WriteBytes writes content to a temp file and renames it into place
func (w *Workspace) WriteBytes(path string, content []byte) error {
	tempPath := path + tempSuffix
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	w.logger.Debug("Document written",
		zap.String("file_path", path),
		zap.Int("size_bytes", len(content)))
	return nil
}

// List returns the paths of all documents, sorted by name
func (w *Workspace) List() ([]string, error) {
	return w.glob(func(name string) bool { return true })
}

// ArticleFiles returns the documents saved for the n-th article
func (w *Workspace) ArticleFiles(n int) ([]string, error) {
	prefix := articlePrefix + strconv.Itoa(n) + "_"
	return w.glob(func(name string) bool { return strings.HasPrefix(name, prefix) })
}

func (w *Workspace) glob(match func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list workspace: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != documentExt || !match(name) {
			continue
		}
		paths = append(paths, filepath.Join(w.dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// Clear removes every file in the workspace, keeping the directory
func (w *Workspace) Clear() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to list workspace: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s: %w", path, err)
		}
		removed++
	}

	w.logger.Debug("Workspace cleared", zap.String("dir", w.dir), zap.Int("removed", removed))
	return nil
}

// Exists reports whether path is an existing file
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Manifest describes the last fetch run
type Manifest struct {
	RunID     string                    `json:"run_id"`
	URL       string                    `json:"url"`
	FetchedAt time.Time                 `json:"fetched_at"`
	MainPage  string                    `json:"main_page"`
	Articles  []types.Article           `json:"articles"`
	SEO       map[string]*types.PageSEO `json:"seo,omitempty"` // keyed by page URL
}

// WriteManifest stores m as manifest.json
func (w *Workspace) WriteManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return w.WriteBytes(filepath.Join(w.dir, ManifestFile), data)
}

// ReadManifest loads manifest.json. Returns nil without error when none exists.
func (w *Workspace) ReadManifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(w.dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
