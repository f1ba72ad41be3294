package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Pipeline requests by action and response status",
	}, []string{"action", "status"})

	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_tokens_total",
		Help: "Token issuance and verification outcomes",
	}, []string{"outcome"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_upstream_latency_seconds",
		Help:    "Completion call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	SkippedHistoryRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_history_records_skipped_total",
		Help: "Persisted history records that could not be decoded",
	})

	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_audit_write_failures_total",
		Help: "Audit rows that could not be written",
	})
)
