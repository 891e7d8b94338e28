// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloudvault_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_uploads_total",
			Help: "Upload attempts by result.",
		},
		[]string{"result"},
	)

	UploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudvault_uploaded_bytes_total",
		Help: "Bytes accepted by successful uploads.",
	})

	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_downloads_total",
			Help: "File deliveries by channel (owner or share).",
		},
		[]string{"via"},
	)

	ShareResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_share_resolutions_total",
			Help: "Share-link resolutions by result.",
		},
		[]string{"result"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_events_published_total",
			Help: "Analytics events handed to the event sink by result.",
		},
		[]string{"result"},
	)

	TokenCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudvault_token_cache_hits_total",
		Help: "Verified-token cache hits.",
	})

	TokenCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudvault_token_cache_misses_total",
		Help: "Verified-token cache misses.",
	})

	ProgressDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudvault_progress_dropped_total",
		Help: "Upload progress notifications dropped because the buffer was full.",
	})
)
