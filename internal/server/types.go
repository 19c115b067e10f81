// Package server exposes lane detection over HTTP and WebSocket.
package server

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// laneDetector is the part of *pipeline.Pipeline the handlers use.
type laneDetector interface {
	ProcessImageContext(ctx context.Context, img image.Image) (*pipeline.FrameResult, error)
	ProcessFrameContext(ctx context.Context, f lanes.Frame) (*pipeline.FrameResult, error)
	Info() map[string]any
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	detector       laneDetector
	corsOrigin     string
	maxUploadMB    int64
	timeout        time.Duration
	overlayEnabled bool
	overlay        pipeline.OverlayOptions
	rateLimiter    *RateLimiter
	runs           *store.Store
	version        string
	started        time.Time
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	Pipeline       pipeline.Config
	OverlayEnabled bool
	Overlay        pipeline.OverlayOptions
	// RateLimiter is optional; nil disables limiting.
	RateLimiter *RateLimiter
	// Runs is an optional run history exposed under /runs.
	Runs    *store.Store
	Version string
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Version   string  `json:"version,omitempty"`
	Time      string  `json:"time"`
	UptimeSec float64 `json:"uptime_sec"`
}

// LaneResponse wraps a detection result or an error.
type LaneResponse struct {
	Success bool                  `json:"success"`
	Result  *pipeline.FrameResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// NewServer builds the lane pipeline and returns a server around it.
func NewServer(cfg Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().WithConfig(cfg.Pipeline).Build()
	if err != nil {
		return nil, err
	}
	return newServer(cfg, pl), nil
}

func newServer(cfg Config, det laneDetector) *Server {
	s := &Server{
		detector:       det,
		corsOrigin:     cfg.CORSOrigin,
		maxUploadMB:    cfg.MaxUploadMB,
		timeout:        time.Duration(cfg.TimeoutSec) * time.Second,
		overlayEnabled: cfg.OverlayEnabled,
		overlay:        cfg.Overlay,
		rateLimiter:    cfg.RateLimiter,
		runs:           cfg.Runs,
		version:        cfg.Version,
		started:        time.Now(),
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if s.overlay.Color == nil {
		s.overlay = pipeline.DefaultOverlayOptions()
	}
	return s
}

// Close releases server resources. The run store is owned by the caller.
func (s *Server) Close() error {
	if s.detector != nil {
		return s.detector.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/config", s.corsMiddleware(s.configHandler))
	mux.HandleFunc("/lanes/image", s.corsMiddleware(s.rateLimitMiddleware(s.laneImageHandler)))
	mux.HandleFunc("/lanes/frame", s.corsMiddleware(s.rateLimitMiddleware(s.laneFrameHandler)))
	mux.HandleFunc("/ws/lanes", s.rateLimitMiddleware(s.laneWebSocketHandler))
	mux.HandleFunc("/runs", s.corsMiddleware(s.runsHandler))
	mux.HandleFunc("/runs/{id}", s.corsMiddleware(s.runHandler))
	mux.Handle("/metrics", promhttp.Handler())
}
