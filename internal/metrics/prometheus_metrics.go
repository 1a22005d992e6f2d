package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// PrometheusMetrics holds the Prometheus collectors for scraping and analysis
type PrometheusMetrics struct {
	// Scrape metrics
	pagesFetched       *prometheus.CounterVec
	fetchDuration      *prometheus.HistogramVec
	articlesDiscovered prometheus.Histogram
	documentsSaved     *prometheus.CounterVec

	// Analysis metrics
	analysisRequests *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	analysisRetries  prometheus.Counter

	// HTTP metrics
	httpRequests *prometheus.CounterVec

	httpHandler func(*fasthttp.RequestCtx)
}

// NewPrometheusMetricsWithRegistry registers all collectors on registerer
func NewPrometheusMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *PrometheusMetrics {
	pm := &PrometheusMetrics{}

	pm.pagesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scrape",
		Name:      "pages_fetched_total",
		Help:      "Pages fetched by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome: success, error, timeout, cache_hit

	pm.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scrape",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching a page including the retry",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"kind"})

	pm.articlesDiscovered = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scrape",
		Name:      "articles_discovered",
		Help:      "Article links discovered on a main page",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	pm.documentsSaved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scrape",
		Name:      "documents_saved_total",
		Help:      "PDF documents written to the workspace",
	}, []string{"kind"})

	pm.analysisRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analyzer",
		Name:      "requests_total",
		Help:      "Keyword extraction requests by backend and outcome",
	}, []string{"backend", "outcome"})

	pm.analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analyzer",
		Name:      "duration_seconds",
		Help:      "Time spent in keyword extraction including retries",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	pm.analysisRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analyzer",
		Name:      "retries_total",
		Help:      "Retried generation attempts",
	})

	pm.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	registerer.MustRegister(
		pm.pagesFetched,
		pm.fetchDuration,
		pm.articlesDiscovered,
		pm.documentsSaved,
		pm.analysisRequests,
		pm.analysisDuration,
		pm.analysisRetries,
		pm.httpRequests,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("Prometheus metrics initialized", zap.String("namespace", namespace))
	return pm
}

// ServeHTTP serves Prometheus metrics via HTTP
func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}
