package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCountersAccumulate(t *testing.T) {
	ok := RequestsTotal.WithLabelValues("get-info-from-ai", "200")
	before := counterValue(t, ok)
	ok.Inc()
	assert.Equal(t, before+1, counterValue(t, ok))

	skipped := counterValue(t, SkippedHistoryRecords)
	SkippedHistoryRecords.Add(2)
	assert.Equal(t, skipped+2, counterValue(t, SkippedHistoryRecords))
}

func TestCollectorsAreRegistered(t *testing.T) {
	RequestsTotal.WithLabelValues("unknown", "405")
	UpstreamLatency.WithLabelValues("200").Observe(0.1)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["gateway_requests_total"])
	assert.True(t, names["gateway_upstream_latency_seconds"])
}
