package config

import (
	"strings"
	"testing"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, infoLevel, cfg.LogLevel)
	assert.Equal(t, lanes.DefaultConfig(), cfg.Detector)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Positive(t, cfg.Pipeline.MaxWorkers)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad detector", func(c *Config) { c.Detector.Hough.Threshold = 0 }, "detector"},
		{"bad policy", func(c *Config) { c.Detector.SingleSidePolicy = "both" }, "single side policy"},
		{"half resize", func(c *Config) { c.Pipeline.ResizeWidth = 320 }, "resize"},
		{"negative workers", func(c *Config) { c.Pipeline.MaxWorkers = -2 }, "max_workers"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "format"},
		{"bad color", func(c *Config) { c.Output.OverlayColor = "red" }, "overlay_color"},
		{"thin overlay", func(c *Config) { c.Output.OverlayThickness = 0 }, "overlay_thickness"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"zero upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max_upload_mb"},
		{"negative limit", func(c *Config) { c.Server.RateLimit.RequestsPerHour = -1 }, "rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "nope"
	cfg.Server.Port = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, 2, strings.Count(err.Error(), "\n")+1)
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.BlurSigma = 1
	cfg.Pipeline = PipelineConfig{ResizeWidth: 320, ResizeHeight: 240, MaxWorkers: 3}

	pc := cfg.ToPipelineConfig()
	assert.InDelta(t, 1.0, pc.Detector.BlurSigma, 1e-12)
	assert.Equal(t, 320, pc.ResizeWidth)
	assert.Equal(t, 240, pc.ResizeHeight)
	assert.Equal(t, 3, pc.Parallel.MaxWorkers)
}

func TestToOverlayOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.OverlayColor = "#0000FF"
	cfg.Output.OverlayThickness = 4
	cfg.Output.DrawROI = true

	opts, err := cfg.ToOverlayOptions()
	require.NoError(t, err)
	r, g, b, _ := opts.Color.RGBA()
	assert.Equal(t, []uint32{0, 0, 0xffff}, []uint32{r, g, b})
	assert.Equal(t, 4, opts.Thickness)
	assert.True(t, opts.DrawROI)

	cfg.Output.OverlayColor = "#xyz"
	_, err = cfg.ToOverlayOptions()
	require.Error(t, err)
}
