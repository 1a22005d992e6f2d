package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/analyzer"
	"github.com/edgecomet/blogkeywords/internal/common/urlutil"
	"github.com/edgecomet/blogkeywords/internal/document"
	"github.com/edgecomet/blogkeywords/internal/htmlprocessor"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

type savedPage struct {
	title string
	seo   *types.PageSEO
}

// load fetches pageURL and parses it, resolving links against the post-redirect URL
func (s *Session) load(ctx context.Context, runID string, kind types.PageKind, pageURL string) (*htmlprocessor.Document, error) {
	page, err := s.fetcher.Fetch(ctx, runID, kind, pageURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(page.FinalURL)
	if err != nil || page.FinalURL == "" {
		base, err = url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("invalid page url: %w", err)
		}
	}

	return htmlprocessor.Parse(page.Body, page.ContentType, base)
}

// save cleans doc and writes it to path as a PDF, plus a markdown sidecar for
// text-only analyzers. An article without a usable title falls back to its slug.
func (s *Session) save(doc *htmlprocessor.Document, kind types.PageKind, path, articleURL string) (*savedPage, error) {
	content, err := doc.CleanContent(htmlprocessor.CleanOptions{
		MinContentLength: s.cfg.Scrape.MinContentLength,
		Readability:      s.cfg.Scrape.ReadabilityEnabled(),
	})
	if err != nil {
		return nil, err
	}

	md, err := htmlprocessor.ToMarkdown(content.HTML)
	if err != nil {
		return nil, err
	}

	title := content.Title
	if title == htmlprocessor.UntitledArticle && articleURL != "" {
		if u, err := urlutil.ParseTarget(articleURL); err == nil {
			if slug := urlutil.TitleFromURL(u); slug != "" {
				title = slug
			}
		}
	}

	seo := doc.ExtractPageSEO()
	sourceURL := doc.URL().String()

	err = s.workspace.Write(path, func(w io.Writer) error {
		return document.RenderPDF(w, document.Content{
			Title:       title,
			SourceURL:   sourceURL,
			Description: seo.MetaDescription,
			Blocks:      document.ParseBlocks(md),
			CreatedAt:   time.Now(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("error saving %s as PDF: %w", sourceURL, err)
	}

	if err := s.workspace.WriteBytes(analyzer.TextSidecar(path), []byte(md)); err != nil {
		s.logger.Warn("Failed to write document text", zap.String("file_path", path), zap.Error(err))
	}

	s.metrics.RecordDocumentSaved(kind)
	s.logger.Debug("Document saved",
		zap.String("kind", string(kind)),
		zap.String("file_path", path),
		zap.String("strategy", content.Strategy),
		zap.Int("text_length", content.TextLength))

	return &savedPage{title: title, seo: seo}, nil
}
