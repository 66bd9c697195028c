package prometheus

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChemMetrics(t *testing.T) (*ChemMetrics, MetricsCollector) {
	c := newTestCollector(t)
	return NewChemMetrics(c), c
}

func TestNewChemMetrics_AllMetricsRegistered(t *testing.T) {
	m, _ := newTestChemMetrics(t)
	require.NotNil(t, m)

	assert.NotNil(t, m.ParseTotal)
	assert.NotNil(t, m.ParseDuration)
	assert.NotNil(t, m.MatchTotal)
	assert.NotNil(t, m.FingerprintDuration)
	assert.NotNil(t, m.QueryCacheHits)
	assert.NotNil(t, m.QueryCacheMisses)
	assert.NotNil(t, m.QueryCacheEvictions)
	assert.NotNil(t, m.QueryCacheEntries)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
}

func TestRecordParse(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		format string
		ok     bool
		want   string
	}{
		{"valid molecule", "molecule", "smiles", true, `test_unit_molecule_parse_total{format="smiles",mode="molecule",result="ok"} 1`},
		{"invalid molecule", "molecule", "molfile", false, `test_unit_molecule_parse_total{format="molfile",mode="molecule",result="invalid"} 1`},
		{"valid query", "query", "smarts", true, `test_unit_molecule_parse_total{format="smarts",mode="query",result="ok"} 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, c := newTestChemMetrics(t)
			m.RecordParse(tt.mode, tt.format, tt.ok, 2*time.Millisecond)

			output := scrapeMetrics(t, c)
			assert.Contains(t, output, tt.want)
			assert.Contains(t, output, `test_unit_molecule_parse_duration_seconds_count{mode="`+tt.mode+`"} 1`)
		})
	}
}

func TestRecordMatch(t *testing.T) {
	m, c := newTestChemMetrics(t)
	m.RecordMatch(true)
	m.RecordMatch(true)
	m.RecordMatch(false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_substructure_match_total{result="true"} 2`)
	assert.Contains(t, output, `test_unit_substructure_match_total{result="false"} 1`)
}

func TestRecordFingerprint(t *testing.T) {
	m, c := newTestChemMetrics(t)
	m.RecordFingerprint("circular", time.Millisecond)
	m.RecordFingerprint("path", time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_fingerprint_duration_seconds_count{kind="circular"} 1`)
	assert.Contains(t, output, `test_unit_fingerprint_duration_seconds_count{kind="path"} 1`)
}

func TestCacheRecorder(t *testing.T) {
	m, c := newTestChemMetrics(t)
	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.CacheEviction()
	m.CacheEntries(3)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "test_unit_query_cache_hits_total 2")
	assert.Contains(t, output, "test_unit_query_cache_misses_total 1")
	assert.Contains(t, output, "test_unit_query_cache_evictions_total 1")
	assert.Contains(t, output, "test_unit_query_cache_entries 3")
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestChemMetrics(t)
	m.RecordHTTPRequest("POST", "/api/v1/molecules/canonical", 200, 100*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_http_requests_total{method="POST",path="/api/v1/molecules/canonical",status_code="200"} 1`)
	assert.Contains(t, output, `test_unit_http_request_duration_seconds_count{method="POST",path="/api/v1/molecules/canonical"} 1`)
}

func TestMetricNaming_FollowsConvention(t *testing.T) {
	m, c := newTestChemMetrics(t)
	m.RecordParse("molecule", "smiles", true, time.Millisecond)
	m.CacheHit()

	for _, line := range strings.Split(scrapeMetrics(t, c), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		assert.True(t, strings.HasPrefix(line, "test_unit_"), line)
	}
}

func TestConcurrentMetricRecording(t *testing.T) {
	m, c := newTestChemMetrics(t)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordMatch(true)
			m.CacheMiss()
		}()
	}
	wg.Wait()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_substructure_match_total{result="true"} 100`)
	assert.Contains(t, output, "test_unit_query_cache_misses_total 100")
}
