package pipeline_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/edgecomet/blogkeywords/internal/fetcher"
	"github.com/edgecomet/blogkeywords/internal/pipeline"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

var articleBody = strings.Repeat("Content marketing teams plan keyword clusters around search intent. ", 12)

// newBlogServer serves a small blog: a listing at /blog/ linking to two
// articles and one missing page.
func newBlogServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/blog/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blog/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html lang="en"><head><title>Example Blog</title>
<meta name="description" content="Notes on SEO and content."></head>
<body>
<nav><a href="/category/seo/">SEO</a><a href="/about">About</a></nav>
<h1>Example Blog</h1>
<article><h2><a href="/blog/first-post">First post</a></h2><p>Teaser one.</p></article>
<article><h2><a href="/blog/second-post#comments">Second post</a></h2><p>Teaser two.</p></article>
<article><h2><a href="/blog/broken">Broken post</a></h2><p>Teaser three.</p></article>
<footer><a href="/tag/misc/">misc</a></footer>
</body></html>`)
	})

	mux.HandleFunc("/blog/first-post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>First | Example Blog</title></head><body>
<article><h1 class="entry-title">First Post Title</h1><h2>Planning</h2><p>%s</p></article>
</body></html>`, articleBody)
	})

	mux.HandleFunc("/blog/second-post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><div class="post-content"><p>%s</p></div></body></html>`, articleBody)
	})

	mux.HandleFunc("/blog/broken", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return httptest.NewServer(mux)
}

// recordingAnalyzer remembers the files it was asked to analyze
type recordingAnalyzer struct {
	mu      sync.Mutex
	paths   []string
	prompt  string
	result  string
	err     error
	release chan struct{} // when set, AnalyzeFiles blocks until closed
}

func (a *recordingAnalyzer) AnalyzeFiles(ctx context.Context, prompt string, paths []string) (string, error) {
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append([]string(nil), paths...)
	a.prompt = prompt
	return a.result, a.err
}

func (a *recordingAnalyzer) Paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

type fetchSpan struct {
	url        string
	start, end time.Time
}

// slowFetcher adds latency to every fetch and records when each one ran
type slowFetcher struct {
	inner   pipeline.Fetcher
	latency time.Duration

	mu    sync.Mutex
	spans []fetchSpan
}

func (f *slowFetcher) Fetch(ctx context.Context, runID string, kind types.PageKind, pageURL string) (*fetcher.Page, error) {
	start := time.Now()
	time.Sleep(f.latency)
	page, err := f.inner.Fetch(ctx, runID, kind, pageURL)

	f.mu.Lock()
	f.spans = append(f.spans, fetchSpan{url: pageURL, start: start, end: time.Now()})
	f.mu.Unlock()
	return page, err
}

func (f *slowFetcher) Spans() []fetchSpan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchSpan(nil), f.spans...)
}
