package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanedetect_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lanedetect_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// type: image, frame, websocket
	detectRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanedetect_detect_requests_total",
			Help: "Total number of lane detection requests",
		},
		[]string{"type", "status"},
	)

	detectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lanedetect_detect_duration_seconds",
			Help:    "Lane detection duration in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"type"},
	)

	lanesFound = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lanedetect_lanes_found",
			Help:    "Number of non-fallback lane segments per frame",
			Buckets: []float64{0, 1, 2},
		},
	)

	fallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanedetect_fallback_total",
			Help: "Frames that produced the zero segment fallback",
		},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanedetect_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lanedetect_upload_size_bytes",
			Help:    "Size of uploaded images and frames in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lanedetect_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	// direction: sent, received
	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanedetect_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"},
	)
)

func observeResult(kind string, seconds float64, fallback bool, segments int) {
	detectRequestsTotal.WithLabelValues(kind, "success").Inc()
	detectDuration.WithLabelValues(kind).Observe(seconds)
	if fallback {
		fallbackTotal.Inc()
		lanesFound.Observe(0)
		return
	}
	lanesFound.Observe(float64(segments))
}
