package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pupring/engrave/internal/pipeline"
)

// Prometheus metrics for the HTTP API and the pipeline runs it triggers.
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engrave_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engrave_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engrave_pipeline_runs_total",
			Help: "Total number of pipeline runs by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)

	pipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engrave_pipeline_run_duration_seconds",
			Help:    "End-to-end pipeline run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"transport"},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engrave_upload_size_bytes",
			Help:    "Size of uploaded photos in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engrave_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engrave_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engrave_websocket_messages_total",
			Help: "Total number of WebSocket messages by direction",
		},
		[]string{"direction"},
	)
)

// recordRun records counters and duration for one completed pipeline run.
func recordRun(transport string, res *pipeline.Result) {
	pipelineRunsTotal.WithLabelValues(transport, runOutcome(res)).Inc()
	pipelineRunDuration.WithLabelValues(transport).Observe(res.Elapsed.Seconds())
}

func runOutcome(res *pipeline.Result) string {
	switch {
	case res.Success && res.Cached:
		return "cached"
	case res.Success:
		return "success"
	case res.RequiresNewImage:
		return "rejected"
	default:
		return "failed"
	}
}
