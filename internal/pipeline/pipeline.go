// Package pipeline turns decoded images into lane detection results and
// fans work out over a worker pool.
package pipeline

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
)

// Config holds configuration for the lane pipeline.
type Config struct {
	Detector lanes.Config
	// ResizeWidth and ResizeHeight rescale every image before detection when both are set.
	ResizeWidth  int
	ResizeHeight int
	Parallel     ParallelConfig
}

// DefaultConfig returns the reference detector with no resizing.
func DefaultConfig() Config {
	return Config{
		Detector: lanes.DefaultConfig(),
		Parallel: DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithDetectorConfig replaces the detector parameters.
func (b *Builder) WithDetectorConfig(cfg lanes.Config) *Builder {
	b.cfg.Detector = cfg
	return b
}

// WithBlurSigma sets the smoothing strength before masking.
func (b *Builder) WithBlurSigma(sigma float64) *Builder {
	b.cfg.Detector.BlurSigma = sigma
	return b
}

// WithCannyThresholds sets the hysteresis pair.
func (b *Builder) WithCannyThresholds(low, high float64) *Builder {
	b.cfg.Detector.Canny.Low = low
	b.cfg.Detector.Canny.High = high
	return b
}

// WithHoughThreshold sets the minimum vote count for a line.
func (b *Builder) WithHoughThreshold(votes int) *Builder {
	if votes > 0 {
		b.cfg.Detector.Hough.Threshold = votes
	}
	return b
}

// WithROI sets the trapezoid fractions.
func (b *Builder) WithROI(roi lanes.ROIConfig) *Builder {
	b.cfg.Detector.ROI = roi
	return b
}

// WithMinAbsSlope sets the near-horizontal cutoff.
func (b *Builder) WithMinAbsSlope(v float64) *Builder {
	b.cfg.Detector.MinAbsSlope = v
	return b
}

// WithSingleSidePolicy selects keep or drop for one-sided results.
func (b *Builder) WithSingleSidePolicy(p lanes.SingleSidePolicy) *Builder {
	if p != "" {
		b.cfg.Detector.SingleSidePolicy = p
	}
	return b
}

// WithResize rescales inputs to width×height. Zero values disable resizing.
func (b *Builder) WithResize(width, height int) *Builder {
	b.cfg.ResizeWidth = width
	b.cfg.ResizeHeight = height
	return b
}

// WithWorkers sets the worker pool size (0 = runtime.NumCPU()).
func (b *Builder) WithWorkers(n int) *Builder {
	if n >= 0 {
		b.cfg.Parallel.MaxWorkers = n
	}
	return b
}

// WithProgressCallback installs a progress reporter for parallel runs.
func (b *Builder) WithProgressCallback(cb ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = cb
	return b
}

// Config returns the current builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the configuration without building.
func (b *Builder) Validate() error {
	if (b.cfg.ResizeWidth == 0) != (b.cfg.ResizeHeight == 0) {
		return errors.New("resize needs both width and height")
	}
	if b.cfg.ResizeWidth < 0 || b.cfg.ResizeHeight < 0 {
		return fmt.Errorf("invalid resize %dx%d", b.cfg.ResizeWidth, b.cfg.ResizeHeight)
	}
	if b.cfg.Parallel.MaxWorkers < 0 {
		return fmt.Errorf("max workers must be >= 0, got %d", b.cfg.Parallel.MaxWorkers)
	}
	return b.cfg.Detector.Validate()
}

// Pipeline couples the lane detector with image preparation.
type Pipeline struct {
	cfg      Config
	Detector *lanes.Detector
}

// Build validates the configuration and creates the detector.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	det, err := lanes.NewDetector(b.cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("init detector: %w", err)
	}
	return &Pipeline{cfg: b.cfg, Detector: det}, nil
}

// Close releases the detector. The pipeline must not be used afterwards.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	p.Detector = nil
	return nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// ResizeEnabled reports whether images are rescaled before detection.
func (p *Pipeline) ResizeEnabled() bool {
	return p.cfg.ResizeWidth > 0 && p.cfg.ResizeHeight > 0
}

// Info returns a summary of the active configuration.
func (p *Pipeline) Info() map[string]any {
	d := p.cfg.Detector
	workers := p.cfg.Parallel.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	info := map[string]any{
		"detector": map[string]any{
			"blur_sigma":         d.BlurSigma,
			"canny_low":          d.Canny.Low,
			"canny_high":         d.Canny.High,
			"hough_threshold":    d.Hough.Threshold,
			"rho_step":           d.Hough.RhoStep,
			"theta_step_deg":     d.Hough.ThetaStepDeg,
			"min_abs_slope":      d.MinAbsSlope,
			"single_side_policy": string(d.SingleSidePolicy),
			"roi":                d.ROI,
		},
		"parallel": map[string]any{
			"max_workers":           workers,
			"has_progress_callback": p.cfg.Parallel.ProgressCallback != nil,
		},
		"resize": map[string]any{
			"enabled": p.ResizeEnabled(),
			"width":   p.cfg.ResizeWidth,
			"height":  p.cfg.ResizeHeight,
		},
	}
	return info
}
