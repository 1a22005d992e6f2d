// Package pipeline drives one keyword extraction session: fetch a blog and its
// articles into documents, then analyze the selected documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/common/config"
	"github.com/edgecomet/blogkeywords/internal/common/runid"
	"github.com/edgecomet/blogkeywords/internal/common/urlutil"
	"github.com/edgecomet/blogkeywords/internal/fetcher"
	"github.com/edgecomet/blogkeywords/internal/htmlprocessor"
	"github.com/edgecomet/blogkeywords/internal/metrics"
	"github.com/edgecomet/blogkeywords/internal/workspace"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

var (
	ErrBusy                = errors.New("a fetch or analysis is already in progress")
	ErrAlreadyFetched      = errors.New("articles already fetched for this URL, use clear to start again")
	ErrNothingToAnalyze    = errors.New("no content to analyze, fetch a blog first")
	ErrUnknownArticle      = errors.New("unknown article")
	ErrAnalyzerUnavailable = errors.New("analyzer is not configured")
	ErrInvalidURL          = errors.New("invalid URL")
)

// Fetcher downloads pages
type Fetcher interface {
	Fetch(ctx context.Context, runID string, kind types.PageKind, pageURL string) (*fetcher.Page, error)
}

// Analyzer extracts keywords from documents on disk
type Analyzer interface {
	AnalyzeFiles(ctx context.Context, prompt string, paths []string) (string, error)
}

// Snapshot is a copy of the session state
type Snapshot struct {
	Status   string          `json:"status"`
	URL      string          `json:"url,omitempty"`
	RunID    string          `json:"run_id,omitempty"`
	MainPage string          `json:"main_page,omitempty"`
	Articles []types.Article `json:"articles"`
	Keywords string          `json:"keywords"`
}

// SelectedCount returns the number of selected articles
func (s *Snapshot) SelectedCount() int {
	n := 0
	for _, a := range s.Articles {
		if a.Selected {
			n++
		}
	}
	return n
}

// Option configures a Session
type Option func(*Session)

// WithAnalyzer enables Analyze
func WithAnalyzer(a Analyzer) Option {
	return func(s *Session) { s.analyzer = a }
}

// WithPrompt replaces the analysis prompt
func WithPrompt(prompt string) Option {
	return func(s *Session) { s.prompt = prompt }
}

// WithMetrics records scrape metrics on collector
func WithMetrics(collector *metrics.MetricsCollector) Option {
	return func(s *Session) { s.metrics = collector }
}

// Session holds the state of one user session. Fetch and Analyze are
// exclusive; state can be read with Snapshot while either runs.
type Session struct {
	mu       sync.Mutex
	status   string
	url      string
	runID    string
	mainPage string
	articles []types.Article
	keywords string

	cfg       *config.Config
	fetcher   Fetcher
	analyzer  Analyzer
	workspace *workspace.Workspace
	prompt    string
	metrics   *metrics.MetricsCollector
	logger    *zap.Logger
}

// New creates a Ready session
func New(cfg *config.Config, ws *workspace.Workspace, f Fetcher, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		status:    types.StatusReady,
		keywords:  types.NoKeywordsYet,
		cfg:       cfg,
		fetcher:   f,
		workspace: ws,
		metrics:   metrics.NewNopCollector(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *Snapshot {
	return &Snapshot{
		Status:   s.status,
		URL:      s.url,
		RunID:    s.runID,
		MainPage: s.mainPage,
		Articles: append([]types.Article{}, s.articles...),
		Keywords: s.keywords,
	}
}

// begin switches to Processing. Must be called with mu held.
func (s *Session) begin(fetchURL string) error {
	if s.status == types.StatusProcessing {
		return ErrBusy
	}
	if fetchURL != "" && fetchURL == s.url {
		return ErrAlreadyFetched
	}
	s.status = types.StatusProcessing
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.status = types.StatusReady
	s.mu.Unlock()
}

// Fetch saves the main page of rawURL and up to scrape.max_articles linked
// articles as documents, replacing any previous content. Fetching the URL that
// was fetched last returns ErrAlreadyFetched.
func (s *Session) Fetch(ctx context.Context, rawURL string) (*Snapshot, error) {
	target, err := urlutil.ParseTarget(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	pageURL := target.String()

	s.mu.Lock()
	if err := s.begin(pageURL); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	runID := runid.New(pageURL)
	s.url = ""
	s.runID = runID
	s.mainPage = ""
	s.articles = nil
	s.keywords = types.NoKeywordsYet
	s.mu.Unlock()
	defer s.end()

	logger := s.logger.With(zap.String("run_id", runID), zap.String("url", pageURL))

	if err := s.workspace.Clear(); err != nil {
		return nil, err
	}

	manifest := &workspace.Manifest{
		RunID:     runID,
		URL:       pageURL,
		FetchedAt: time.Now().UTC(),
		SEO:       make(map[string]*types.PageSEO),
	}

	logger.Info("Extracting article links")
	mainDoc, err := s.load(ctx, runID, types.PageKindMain, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch main page: %w", err)
	}

	links := mainDoc.ExtractArticleLinks(htmlprocessor.LinkRules{
		Exclude:  s.cfg.Links.ExcludeSet(),
		Fallback: s.cfg.Links.FallbackSet(),
	})
	s.metrics.RecordArticlesDiscovered(len(links))

	mainPath := s.workspace.MainPage()
	mainSaved, err := s.save(mainDoc, types.PageKindMain, mainPath, "")
	if err != nil {
		return nil, fmt.Errorf("failed to save the main page: %w", err)
	}
	manifest.MainPage = mainPath
	manifest.SEO[pageURL] = mainSaved.seo

	s.mu.Lock()
	s.mainPage = mainPath
	s.mu.Unlock()

	if len(links) > s.cfg.Scrape.MaxArticles {
		links = links[:s.cfg.Scrape.MaxArticles]
	}
	switch {
	case s.cfg.Scrape.MaxArticles == 0:
		logger.Info("Article fetching disabled, only the main page will be analyzed")
	case len(links) == 0:
		logger.Warn("No article links found, only the main page will be analyzed")
	default:
		logger.Info("Saving articles", zap.Int("articles", len(links)))
	}

	articles, err := s.saveArticles(ctx, runID, links, manifest, logger)
	manifest.Articles = articles

	s.mu.Lock()
	s.articles = articles
	if err == nil {
		s.url = pageURL
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if werr := s.workspace.WriteManifest(manifest); werr != nil {
		logger.Warn("Failed to write manifest", zap.Error(werr))
	}

	logger.Info("Fetch complete",
		zap.Int("articles", len(articles)),
		zap.Int("saved", countSaved(articles)))

	snapshot.Status = types.StatusReady
	return snapshot, nil
}

// saveArticles fetches links one at a time. Once an article is done the session
// waits scrape.article_delay before the next fetch. Failed articles are kept in
// the list unselected, with their error.
func (s *Session) saveArticles(ctx context.Context, runID string, links []string, manifest *workspace.Manifest, logger *zap.Logger) ([]types.Article, error) {
	articles := make([]types.Article, 0, len(links))
	for i, link := range links {
		if i > 0 {
			if err := s.pause(ctx); err != nil {
				return articles, fmt.Errorf("fetch interrupted: %w", err)
			}
		}

		article := types.Article{Index: i + 1, URL: link}
		path := s.workspace.ArticleFile(article.Index, link)

		saved, err := s.loadAndSave(ctx, runID, link, path)
		if err != nil {
			logger.Warn("Failed to save article",
				zap.Int("article", article.Index),
				zap.String("article_url", link),
				zap.Error(err))
			article.Error = err.Error()
			if u, perr := urlutil.ParseTarget(link); perr == nil {
				article.Title = urlutil.TitleFromURL(u)
			}
		} else {
			article.Title = saved.title
			article.File = path
			article.Selected = true
			manifest.SEO[link] = saved.seo
		}
		articles = append(articles, article)

		if ctx.Err() != nil {
			return articles, fmt.Errorf("fetch interrupted: %w", ctx.Err())
		}
	}
	return articles, nil
}

// pause blocks for scrape.article_delay or until ctx is done
func (s *Session) pause(ctx context.Context) error {
	delay := s.cfg.Scrape.ArticleDelay.ToDuration()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) loadAndSave(ctx context.Context, runID, link, path string) (*savedPage, error) {
	doc, err := s.load(ctx, runID, types.PageKindArticle, link)
	if err != nil {
		return nil, err
	}
	return s.save(doc, types.PageKindArticle, path, link)
}

// Analyze sends the main page and the selected articles to the analyzer and
// stores the returned keywords.
func (s *Session) Analyze(ctx context.Context) (string, error) {
	if s.analyzer == nil {
		return "", ErrAnalyzerUnavailable
	}

	s.mu.Lock()
	if err := s.begin(""); err != nil {
		s.mu.Unlock()
		return "", err
	}
	articles := append([]types.Article{}, s.articles...)
	s.mu.Unlock()
	defer s.end()

	paths, err := s.analysisFiles(articles)
	if err != nil {
		return "", err
	}

	s.logger.Info("Analyzing content", zap.Int("files", len(paths)))

	keywords, err := s.analyzer.AnalyzeFiles(ctx, s.prompt, paths)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.keywords = keywords
	s.mu.Unlock()
	return keywords, nil
}

// analysisFiles lists the main page followed by the documents of selected articles
func (s *Session) analysisFiles(articles []types.Article) ([]string, error) {
	var paths []string
	if workspace.Exists(s.workspace.MainPage()) {
		paths = append(paths, s.workspace.MainPage())
	}

	for _, a := range articles {
		if !a.Selected {
			continue
		}
		files, err := s.workspace.ArticleFiles(a.Index)
		if err != nil {
			return nil, err
		}
		paths = append(paths, files...)
	}

	if len(paths) == 0 {
		return nil, ErrNothingToAnalyze
	}
	return paths, nil
}

// ToggleArticle flips the selection of the article with the given 1-based index
// and returns the new selection state.
func (s *Session) ToggleArticle(index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == types.StatusProcessing {
		return false, ErrBusy
	}
	for i := range s.articles {
		if s.articles[i].Index == index {
			s.articles[i].Selected = !s.articles[i].Selected
			return s.articles[i].Selected, nil
		}
	}
	return false, fmt.Errorf("%w: %d", ErrUnknownArticle, index)
}

// Manifest returns the record of the last fetch, or nil when the workspace has none
func (s *Session) Manifest() (*workspace.Manifest, error) {
	return s.workspace.ReadManifest()
}

// Clear resets the session and deletes every saved document
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == types.StatusProcessing {
		return ErrBusy
	}

	s.url = ""
	s.runID = ""
	s.mainPage = ""
	s.articles = nil
	s.keywords = types.NoKeywordsYet

	return s.workspace.Clear()
}

func countSaved(articles []types.Article) int {
	n := 0
	for i := range articles {
		if articles[i].Saved() {
			n++
		}
	}
	return n
}
