// Package service exposes a session over a small JSON HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/analyzer"
	"github.com/edgecomet/blogkeywords/internal/common/httputil"
	"github.com/edgecomet/blogkeywords/internal/fetcher"
	"github.com/edgecomet/blogkeywords/internal/metrics"
	"github.com/edgecomet/blogkeywords/internal/pipeline"
	"github.com/edgecomet/blogkeywords/internal/workspace"
)

// Session is the session API served over HTTP
type Session interface {
	Fetch(ctx context.Context, rawURL string) (*pipeline.Snapshot, error)
	Analyze(ctx context.Context) (string, error)
	ToggleArticle(index int) (bool, error)
	Clear() error
	Snapshot() *pipeline.Snapshot
	Manifest() (*workspace.Manifest, error)
}

// Server routes API requests to a session
type Server struct {
	session Session
	metrics *metrics.MetricsCollector
	logger  *zap.Logger
	server  *fasthttp.Server
}

// New creates an API server for session
func New(session Session, collector *metrics.MetricsCollector, logger *zap.Logger) *Server {
	if collector == nil {
		collector = metrics.NewNopCollector()
	}
	s := &Server{
		session: session,
		metrics: collector,
		logger:  logger,
	}
	s.server = &fasthttp.Server{
		Handler:            s.ServeHTTP,
		Name:               "blog-keywords",
		ReadTimeout:        30 * time.Second,
		MaxRequestBodySize: 64 * 1024,
		TCPKeepalive:       true,
		TCPKeepalivePeriod: 30 * time.Second,
	}
	return s
}

// Start binds listen and serves in the background. Bind errors are returned synchronously.
func (s *Server) Start(listen string) (net.Addr, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", listen, err)
	}

	go func() {
		s.logger.Info("API server listening", zap.String("listen", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil {
			s.logger.Error("API server stopped", zap.String("listen", listen), zap.Error(err))
		}
	}()

	return ln.Addr(), nil
}

// Shutdown stops accepting connections and waits for running requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.ShutdownWithContext(ctx)
}

// ServeHTTP is the main request handler
func (s *Server) ServeHTTP(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	endpoint := path
	switch {
	case method == fasthttp.MethodPost && path == "/fetch":
		s.handleFetch(ctx)
	case method == fasthttp.MethodPost && path == "/analyze":
		s.handleAnalyze(ctx)
	case method == fasthttp.MethodPost && path == "/clear":
		s.handleClear(ctx)
	case method == fasthttp.MethodPost && path == "/articles/toggle":
		s.handleToggle(ctx)
	case method == fasthttp.MethodGet && path == "/status":
		s.handleStatus(ctx)
	case method == fasthttp.MethodGet && path == "/keywords":
		s.handleKeywords(ctx)
	case method == fasthttp.MethodGet && path == "/manifest":
		s.handleManifest(ctx)
	case method == fasthttp.MethodGet && path == "/health":
		httputil.JSONSuccess(ctx, "ok", fasthttp.StatusOK)
	default:
		endpoint = "unknown"
		httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
	}

	s.metrics.RecordHTTPRequest(endpoint, ctx.Response.StatusCode())
}

type fetchRequest struct {
	URL string `json:"url"`
}

type toggleRequest struct {
	Index int `json:"index"`
}

type toggleResponse struct {
	Index    int  `json:"index"`
	Selected bool `json:"selected"`
}

type keywordsResponse struct {
	Keywords string `json:"keywords"`
}

// handleFetch handles POST /fetch
func (s *Server) handleFetch(ctx *fasthttp.RequestCtx) {
	var req fetchRequest
	if err := httputil.DecodeJSONBody(ctx, &req); err != nil {
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		httputil.JSONError(ctx, "url is required", fasthttp.StatusBadRequest)
		return
	}

	snapshot, err := s.session.Fetch(ctx, req.URL)
	if err != nil {
		s.writeError(ctx, "fetch", err)
		return
	}

	msg := fmt.Sprintf("Fetched main page + %d articles", len(snapshot.Articles))
	if len(snapshot.Articles) == 0 {
		msg = "No article links found. Only the main page will be analyzed."
	}
	httputil.JSONResponse(ctx, true, msg, snapshot, fasthttp.StatusOK)
}

// handleAnalyze handles POST /analyze
func (s *Server) handleAnalyze(ctx *fasthttp.RequestCtx) {
	keywords, err := s.session.Analyze(ctx)
	if err != nil {
		s.writeError(ctx, "analyze", err)
		return
	}
	httputil.JSONResponse(ctx, true, "Analysis complete", keywordsResponse{Keywords: keywords}, fasthttp.StatusOK)
}

// handleClear handles POST /clear
func (s *Server) handleClear(ctx *fasthttp.RequestCtx) {
	if err := s.session.Clear(); err != nil {
		s.writeError(ctx, "clear", err)
		return
	}
	httputil.JSONSuccess(ctx, "All data cleared", fasthttp.StatusOK)
}

// handleToggle handles POST /articles/toggle
func (s *Server) handleToggle(ctx *fasthttp.RequestCtx) {
	var req toggleRequest
	if err := httputil.DecodeJSONBody(ctx, &req); err != nil {
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if req.Index < 1 {
		httputil.JSONError(ctx, "index must be a positive article index", fasthttp.StatusBadRequest)
		return
	}

	selected, err := s.session.ToggleArticle(req.Index)
	if err != nil {
		s.writeError(ctx, "toggle", err)
		return
	}
	httputil.JSONData(ctx, toggleResponse{Index: req.Index, Selected: selected}, fasthttp.StatusOK)
}

// handleStatus handles GET /status
func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	httputil.JSONData(ctx, s.session.Snapshot(), fasthttp.StatusOK)
}

// handleKeywords handles GET /keywords
func (s *Server) handleKeywords(ctx *fasthttp.RequestCtx) {
	httputil.JSONData(ctx, keywordsResponse{Keywords: s.session.Snapshot().Keywords}, fasthttp.StatusOK)
}

// handleManifest handles GET /manifest
func (s *Server) handleManifest(ctx *fasthttp.RequestCtx) {
	manifest, err := s.session.Manifest()
	if err != nil {
		s.writeError(ctx, "manifest", err)
		return
	}
	if manifest == nil {
		httputil.JSONError(ctx, "nothing fetched yet", fasthttp.StatusNotFound)
		return
	}
	httputil.JSONData(ctx, manifest, fasthttp.StatusOK)
}

// writeError maps session errors to HTTP status codes
func (s *Server) writeError(ctx *fasthttp.RequestCtx, op string, err error) {
	status := statusFor(err)
	if status >= fasthttp.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
	} else {
		s.logger.Debug("Request rejected", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	}
	httputil.JSONError(ctx, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrBusy),
		errors.Is(err, pipeline.ErrAlreadyFetched),
		errors.Is(err, pipeline.ErrNothingToAnalyze),
		errors.Is(err, analyzer.ErrNoFiles):
		return fasthttp.StatusConflict
	case errors.Is(err, pipeline.ErrInvalidURL):
		return fasthttp.StatusBadRequest
	case fetcher.IsBlocked(err):
		return fasthttp.StatusForbidden
	case errors.Is(err, pipeline.ErrUnknownArticle):
		return fasthttp.StatusNotFound
	case errors.Is(err, pipeline.ErrAnalyzerUnavailable):
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusBadGateway
	}
}
