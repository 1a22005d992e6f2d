// Package fetcher downloads blog pages with browser-like headers, one retry
// with a longer timeout, an optional Redis page cache and SSRF protection.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/common/config"
	"github.com/edgecomet/blogkeywords/internal/common/urlutil"
	"github.com/edgecomet/blogkeywords/internal/events"
	"github.com/edgecomet/blogkeywords/internal/metrics"
	"github.com/edgecomet/blogkeywords/internal/pagecache"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

const maxRedirects = 10

var (
	// ErrTooManyRedirects is returned when a page redirects more than maxRedirects times
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrBodyTooLarge is returned when the response exceeds fetch.max_body_size
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// BlockedError is returned when SSRF protection rejects a target
type BlockedError struct {
	URL string
	Err error
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked %s: %v", e.URL, e.Err)
}

func (e *BlockedError) Unwrap() error {
	return e.Err
}

// Page is a fetched HTML page
type Page struct {
	URL         string // requested URL
	FinalURL    string // URL after redirects; base for resolving links
	StatusCode  int
	ContentType string
	Body        []byte
	Cached      bool
	Duration    time.Duration
}

// PageCache is the page cache used before going to the network
type PageCache interface {
	Get(ctx context.Context, pageURL string) (*pagecache.Entry, bool, error)
	Put(ctx context.Context, pageURL string, entry *pagecache.Entry) error
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithCache enables the page cache
func WithCache(cache PageCache) Option {
	return func(f *Fetcher) { f.cache = cache }
}

// WithMetrics records fetch metrics on collector
func WithMetrics(collector *metrics.MetricsCollector) Option {
	return func(f *Fetcher) { f.metrics = collector }
}

// WithEvents emits one page event per fetch
func WithEvents(emitter events.EventEmitter) Option {
	return func(f *Fetcher) { f.events = emitter }
}

// Fetcher downloads pages
type Fetcher struct {
	cfg     config.FetchConfig
	client  *fasthttp.Client
	cache   PageCache
	metrics *metrics.MetricsCollector
	events  events.EventEmitter
	logger  *zap.Logger
}

// New creates a Fetcher from the fetch configuration
func New(cfg config.FetchConfig, logger *zap.Logger, opts ...Option) *Fetcher {
	client := &fasthttp.Client{
		MaxResponseBodySize:      cfg.MaxBodySize,
		NoDefaultUserAgentHeader: true,
	}

	f := &Fetcher{
		cfg:     cfg,
		client:  client,
		metrics: metrics.NewNopCollector(),
		events:  events.NoopEmitter{},
		logger:  logger,
	}

	// Enable SSRF protection by default (blocks DNS rebinding to private IPs)
	if cfg.SSRFEnabled() {
		client.Dial = f.ssrfSafeDial
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads pageURL. The page cache is consulted first; on a timeout or
// HTTP error the request is retried once with fetch.retry_timeout.
func (f *Fetcher) Fetch(ctx context.Context, runID string, kind types.PageKind, pageURL string) (*Page, error) {
	event := events.NewPageEvent(runID, pageURL, kind)
	defer func() { f.events.Emit(event) }()

	if page := f.fromCache(ctx, pageURL); page != nil {
		event.Outcome = types.OutcomeCacheHit
		event.Cached = true
		event.StatusCode = page.StatusCode
		event.Bytes = len(page.Body)
		f.metrics.RecordPageFetch(kind, types.OutcomeCacheHit, 0)
		return page, nil
	}

	start := time.Now()
	page, err := f.fetchWithRetry(ctx, pageURL)
	duration := time.Since(start)
	event.Duration = duration

	if err != nil {
		outcome := types.OutcomeError
		if isTimeout(err) {
			outcome = types.OutcomeTimeout
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			event.StatusCode = statusErr.StatusCode
		}
		event.Fail(outcome, err)
		f.metrics.RecordPageFetch(kind, outcome, duration)
		return nil, err
	}

	page.Duration = duration
	event.Outcome = types.OutcomeSuccess
	event.StatusCode = page.StatusCode
	event.Bytes = len(page.Body)
	f.metrics.RecordPageFetch(kind, types.OutcomeSuccess, duration)

	if f.cache != nil {
		entry := &pagecache.Entry{
			FinalURL:    page.FinalURL,
			ContentType: page.ContentType,
			Body:        page.Body,
		}
		if err := f.cache.Put(ctx, pageURL, entry); err != nil {
			f.logger.Warn("Failed to cache page", zap.String("url", pageURL), zap.Error(err))
		}
	}

	return page, nil
}

func (f *Fetcher) fromCache(ctx context.Context, pageURL string) *Page {
	if f.cache == nil {
		return nil
	}

	entry, ok, err := f.cache.Get(ctx, pageURL)
	if err != nil {
		f.logger.Warn("Page cache lookup failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	f.logger.Debug("Page served from cache",
		zap.String("url", pageURL),
		zap.String("final_url", entry.FinalURL),
		zap.Int("size", len(entry.Body)))
	return &Page{
		URL:         pageURL,
		FinalURL:    entry.FinalURL,
		StatusCode:  fasthttp.StatusOK,
		ContentType: entry.ContentType,
		Body:        entry.Body,
		Cached:      true,
	}
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, pageURL string) (*Page, error) {
	page, err := f.fetchOnce(ctx, pageURL, f.cfg.Timeout.ToDuration())
	if err == nil || !retryable(err) || ctx.Err() != nil {
		return page, err
	}

	f.logger.Warn("Initial request failed, retrying",
		zap.String("url", pageURL),
		zap.Duration("timeout", f.cfg.RetryTimeout.ToDuration()),
		zap.Error(err))

	return f.fetchOnce(ctx, pageURL, f.cfg.RetryTimeout.ToDuration())
}

// fetchOnce performs one attempt, following redirects within a single deadline
func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string, timeout time.Duration) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	current := pageURL
	for hop := 0; ; hop++ {
		target, err := urlutil.ParseTarget(current)
		if err != nil {
			return nil, err
		}
		if f.cfg.SSRFEnabled() {
			if err := urlutil.ValidateTargetHost(target); err != nil {
				return nil, &BlockedError{URL: current, Err: err}
			}
		}

		req.Reset()
		resp.Reset()
		req.SetRequestURI(target.String())
		req.Header.SetMethod(fasthttp.MethodGet)
		f.setBrowserHeaders(req)

		if err := f.client.DoDeadline(req, resp, deadline); err != nil {
			if errors.Is(err, fasthttp.ErrBodyTooLarge) {
				return nil, fmt.Errorf("fetch %s: %w", current, ErrBodyTooLarge)
			}
			var blocked *BlockedError
			if errors.As(err, &blocked) {
				return nil, blocked
			}
			return nil, fmt.Errorf("fetch %s: %w", current, err)
		}

		status := resp.StatusCode()
		if !fasthttp.StatusCodeIsRedirect(status) {
			if status < 200 || status > 299 {
				return nil, &StatusError{URL: current, StatusCode: status}
			}
			// a missing header must stay empty so <meta charset> decides the encoding
			resp.Header.SetNoDefaultContentType(true)
			return &Page{
				URL:         pageURL,
				FinalURL:    current,
				StatusCode:  status,
				ContentType: string(resp.Header.ContentType()),
				Body:        append([]byte(nil), resp.Body()...),
			}, nil
		}

		if hop >= maxRedirects {
			return nil, fmt.Errorf("fetch %s: %w", pageURL, ErrTooManyRedirects)
		}
		location := string(resp.Header.Peek(fasthttp.HeaderLocation))
		next, err := target.Parse(location)
		if location == "" || err != nil {
			return nil, &StatusError{URL: current, StatusCode: status}
		}
		next.Fragment = ""
		current = next.String()
	}
}

func (f *Fetcher) setBrowserHeaders(req *fasthttp.Request) {
	req.Header.Set(fasthttp.HeaderUserAgent, f.cfg.UserAgent)
	req.Header.Set(fasthttp.HeaderAccept, "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set(fasthttp.HeaderAcceptLanguage, "en-US,en;q=0.5")
	req.Header.Set(fasthttp.HeaderReferer, "https://www.google.com/")
	req.Header.Set("DNT", "1")
	req.Header.Set(fasthttp.HeaderUpgradeInsecureRequests, "1")
	req.Header.Set(fasthttp.HeaderCacheControl, "max-age=0")
}

// ssrfSafeDial resolves the hostname, validates all IPs are public, then connects.
// Prevents DNS rebinding attacks where an attacker's domain resolves to a private IP.
func (f *Fetcher) ssrfSafeDial(addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("DNS resolution failed for %q: %w", host, err)
	}

	if len(ips) == 0 {
		return nil, fmt.Errorf("no IP addresses found for %q", host)
	}

	for _, ip := range ips {
		if err := urlutil.ValidateResolvedIP(ip); err != nil {
			return nil, &BlockedError{URL: host, Err: err}
		}
	}

	return fasthttp.DialTimeout(net.JoinHostPort(ips[0].String(), port), f.cfg.Timeout.ToDuration())
}

// retryable reports whether a failed attempt deserves the longer second try
func retryable(err error) bool {
	if isTimeout(err) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsBlocked reports whether err came from SSRF protection
func IsBlocked(err error) bool {
	var blocked *BlockedError
	return errors.As(err, &blocked)
}
