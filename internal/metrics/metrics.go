package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "design_vault",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "design_vault",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UploadedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "design_vault",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes stored by successful uploads, by file type.",
		},
		[]string{"file_type"},
	)

	TagSuggestions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "design_vault",
			Name:      "tag_suggestions_total",
			Help:      "Tag suggestions served, by source (ai or heuristic).",
		},
		[]string{"source"},
	)
)
