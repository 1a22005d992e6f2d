package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/pkg/types"
)

// MetricsCollector centralizes metrics recording
type MetricsCollector struct {
	prometheus *PrometheusMetrics
}

// NewMetricsCollector registers metrics on the default Prometheus registry
func NewMetricsCollector(namespace string, logger *zap.Logger) *MetricsCollector {
	return NewMetricsCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewMetricsCollectorWithRegistry registers metrics on registerer
func NewMetricsCollectorWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		prometheus: NewPrometheusMetricsWithRegistry(namespace, registerer, logger),
	}
}

// NewNopCollector records into a private registry nobody serves
func NewNopCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry("blogkeywords", prometheus.NewRegistry(), zap.NewNop())
}

// RecordPageFetch records a fetch outcome and, unless served from cache, its duration
func (mc *MetricsCollector) RecordPageFetch(kind types.PageKind, outcome string, duration time.Duration) {
	mc.prometheus.pagesFetched.WithLabelValues(string(kind), outcome).Inc()
	if outcome != types.OutcomeCacheHit {
		mc.prometheus.fetchDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
	}
}

// RecordArticlesDiscovered records how many article links a main page yielded
func (mc *MetricsCollector) RecordArticlesDiscovered(count int) {
	mc.prometheus.articlesDiscovered.Observe(float64(count))
}

// RecordDocumentSaved counts a PDF written to the workspace
func (mc *MetricsCollector) RecordDocumentSaved(kind types.PageKind) {
	mc.prometheus.documentsSaved.WithLabelValues(string(kind)).Inc()
}

// RecordAnalysis records a keyword extraction call
func (mc *MetricsCollector) RecordAnalysis(backend, outcome string, duration time.Duration) {
	mc.prometheus.analysisRequests.WithLabelValues(backend, outcome).Inc()
	mc.prometheus.analysisDuration.Observe(duration.Seconds())
}

// RecordAnalysisRetry counts one retried generation attempt
func (mc *MetricsCollector) RecordAnalysisRetry() {
	mc.prometheus.analysisRetries.Inc()
}

// RecordHTTPRequest records an API request
func (mc *MetricsCollector) RecordHTTPRequest(endpoint string, statusCode int) {
	mc.prometheus.httpRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// ServeHTTP serves Prometheus metrics via HTTP
func (mc *MetricsCollector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	mc.prometheus.ServeHTTP(ctx)
}
