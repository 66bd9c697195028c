package prometheus

import (
	"strconv"
	"time"
)

// ChemMetrics holds the metrics of the parsing core and its HTTP surface.
type ChemMetrics struct {
	// Parsing
	ParseTotal    CounterVec
	ParseDuration HistogramVec

	// Matching and fingerprints
	MatchTotal          CounterVec
	FingerprintDuration HistogramVec

	// Query cache
	QueryCacheHits      CounterVec
	QueryCacheMisses    CounterVec
	QueryCacheEvictions CounterVec
	QueryCacheEntries   GaugeVec

	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
}

var (
	// DefaultChemDurationBuckets covers sub-millisecond parses up to slow
	// fingerprints of large inputs.
	DefaultChemDurationBuckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1}
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
)

// NewChemMetrics registers every metric on collector.
func NewChemMetrics(collector MetricsCollector) *ChemMetrics {
	m := &ChemMetrics{}

	m.ParseTotal = collector.RegisterCounter("molecule_parse_total", "Molecule and query parses", "mode", "format", "result")
	m.ParseDuration = collector.RegisterHistogram("molecule_parse_duration_seconds", "Parse and sanitize duration", DefaultChemDurationBuckets, "mode")

	m.MatchTotal = collector.RegisterCounter("substructure_match_total", "Substructure match calls", "result")
	m.FingerprintDuration = collector.RegisterHistogram("fingerprint_duration_seconds", "Fingerprint generation duration", DefaultChemDurationBuckets, "kind")

	m.QueryCacheHits = collector.RegisterCounter("query_cache_hits_total", "Query cache hits")
	m.QueryCacheMisses = collector.RegisterCounter("query_cache_misses_total", "Query cache misses")
	m.QueryCacheEvictions = collector.RegisterCounter("query_cache_evictions_total", "Query cache evictions")
	m.QueryCacheEntries = collector.RegisterGauge("query_cache_entries", "Query graphs currently cached")

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	return m
}

// RecordParse counts a parse attempt. mode is "molecule" or "query".
func (m *ChemMetrics) RecordParse(mode, format string, ok bool, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "invalid"
	}
	m.ParseTotal.WithLabelValues(mode, format, result).Inc()
	m.ParseDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (m *ChemMetrics) RecordMatch(matched bool) {
	m.MatchTotal.WithLabelValues(strconv.FormatBool(matched)).Inc()
}

func (m *ChemMetrics) RecordFingerprint(kind string, duration time.Duration) {
	m.FingerprintDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *ChemMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// CacheHit, CacheMiss, CacheEviction and CacheEntries feed the query cache
// metrics.
func (m *ChemMetrics) CacheHit()          { m.QueryCacheHits.WithLabelValues().Inc() }
func (m *ChemMetrics) CacheMiss()         { m.QueryCacheMisses.WithLabelValues().Inc() }
func (m *ChemMetrics) CacheEviction()     { m.QueryCacheEvictions.WithLabelValues().Inc() }
func (m *ChemMetrics) CacheEntries(n int) { m.QueryCacheEntries.WithLabelValues().Set(float64(n)) }
