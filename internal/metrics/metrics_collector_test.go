package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/pkg/types"
)

func newTestCollector(t *testing.T) (*MetricsCollector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetricsCollectorWithRegistry("test", reg, zap.NewNop()), reg
}

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func labelsOf(m *dto.Metric) map[string]string {
	out := make(map[string]string)
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func TestRecordPageFetch(t *testing.T) {
	mc, reg := newTestCollector(t)

	mc.RecordPageFetch(types.PageKindMain, types.OutcomeSuccess, 200*time.Millisecond)
	mc.RecordPageFetch(types.PageKindArticle, types.OutcomeSuccess, 100*time.Millisecond)
	mc.RecordPageFetch(types.PageKindArticle, types.OutcomeSuccess, 300*time.Millisecond)
	mc.RecordPageFetch(types.PageKindArticle, types.OutcomeCacheHit, 0)

	fetched := findFamily(t, reg, "test_scrape_pages_fetched_total")
	counts := make(map[string]float64)
	for _, m := range fetched.GetMetric() {
		l := labelsOf(m)
		counts[l["kind"]+"/"+l["outcome"]] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{
		"main/success":      1,
		"article/success":   2,
		"article/cache_hit": 1,
	}, counts)

	durations := findFamily(t, reg, "test_scrape_fetch_duration_seconds")
	var samples uint64
	for _, m := range durations.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	assert.Equal(t, uint64(3), samples, "cache hits are not timed")
}

func TestRecordAnalysis(t *testing.T) {
	mc, reg := newTestCollector(t)

	mc.RecordAnalysis("gemini", types.OutcomeSuccess, 2*time.Second)
	mc.RecordAnalysisRetry()
	mc.RecordAnalysisRetry()

	requests := findFamily(t, reg, "test_analyzer_requests_total")
	require.Len(t, requests.GetMetric(), 1)
	assert.Equal(t, map[string]string{"backend": "gemini", "outcome": "success"}, labelsOf(requests.GetMetric()[0]))

	retries := findFamily(t, reg, "test_analyzer_retries_total")
	assert.Equal(t, 2.0, retries.GetMetric()[0].GetCounter().GetValue())
}

func TestRecordScrapeCounters(t *testing.T) {
	mc, reg := newTestCollector(t)

	mc.RecordArticlesDiscovered(7)
	mc.RecordDocumentSaved(types.PageKindMain)
	mc.RecordHTTPRequest("/fetch", 409)

	discovered := findFamily(t, reg, "test_scrape_articles_discovered")
	assert.Equal(t, 7.0, discovered.GetMetric()[0].GetHistogram().GetSampleSum())

	saved := findFamily(t, reg, "test_scrape_documents_saved_total")
	assert.Equal(t, map[string]string{"kind": "main"}, labelsOf(saved.GetMetric()[0]))

	api := findFamily(t, reg, "test_api_http_requests_total")
	assert.Equal(t, map[string]string{"endpoint": "/fetch", "status": "409"}, labelsOf(api.GetMetric()[0]))
}

func TestServeHTTP(t *testing.T) {
	mc, _ := newTestCollector(t)
	mc.RecordArticlesDiscovered(3)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	mc.ServeHTTP(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "test_scrape_articles_discovered")
}

func TestNewNopCollector(t *testing.T) {
	a := NewNopCollector()
	b := NewNopCollector()
	a.RecordAnalysisRetry()
	b.RecordAnalysisRetry()
}
