package lanes

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lanedetect/internal/testutil"
)

func sceneFrame(s testutil.RoadScene) Frame {
	return NewFrame(s.BGR(), s.Width, s.Height)
}

func TestDetect_TwoLaneScene(t *testing.T) {
	det, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	res, err := det.Detect(sceneFrame(testutil.TwoLaneScene(640, 480)))
	require.NoError(t, err)

	require.False(t, res.Fallback)
	require.Len(t, res.Segments, 2)
	require.Len(t, res.Lanes, 2)
	assert.Equal(t, 640, res.Width)
	assert.Equal(t, 480, res.Height)

	left, right := res.Lanes[0], res.Lanes[1]
	assert.Equal(t, SideLeft, left.Side)
	assert.Less(t, left.Segment.Slope(), 0.0)
	assert.InDelta(t, -0.7, left.Segment.Slope(), 0.1)
	assert.InDelta(t, 100, left.Segment.X1, 15)

	assert.Equal(t, SideRight, right.Side)
	assert.Greater(t, right.Segment.Slope(), 0.0)
	assert.InDelta(t, 0.7, right.Segment.Slope(), 0.1)
	assert.InDelta(t, 540, right.Segment.X1, 15)

	for _, s := range res.Segments {
		assert.InDelta(t, 240, s.Y1, 1e-9)
		assert.InDelta(t, 96, s.Y2, 1e-9)
	}
	assert.GreaterOrEqual(t, res.Lines, 2)
	assert.Positive(t, res.Timing.TotalNs)
}

func TestDetect_BlankFrameFallsBack(t *testing.T) {
	segs, err := DetectLanes(sceneFrame(testutil.BlankScene(640, 480)))
	require.NoError(t, err)
	assert.Equal(t, FallbackSegments(), segs)

	det, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	res, err := det.Detect(NewFrame(testutil.UniformBGR(64, 48, 90, 90, 90), 64, 48))
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Zero(t, res.Lines)
}

func TestDetect_SingleSide(t *testing.T) {
	frame := sceneFrame(testutil.LeftOnlyScene(640, 480))

	keep, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	res, err := keep.Detect(frame)
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, SideLeft, res.Lanes[0].Side)
	assert.InDelta(t, 100, res.Segments[0].X1, 15)

	cfg := DefaultConfig()
	cfg.SingleSidePolicy = SingleSideDrop
	drop, err := NewDetector(cfg)
	require.NoError(t, err)
	res, err = drop.Detect(frame)
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	assert.NotNil(t, res.Segments)
	assert.False(t, res.Fallback)
}

func TestDetect_Idempotent(t *testing.T) {
	det, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	scene := testutil.TwoLaneScene(320, 240)
	scene.Noise = 6
	scene.Seed = 42
	frame := sceneFrame(scene)
	before := append([]uint8(nil), frame.Data...)

	first, err := det.Detect(frame)
	require.NoError(t, err)
	second, err := det.Detect(frame)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(Result{}, "Timing")); diff != "" {
		t.Errorf("repeated detection differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, before, frame.Data, "input frame must not be modified")
}

func TestDetect_InvalidFrame(t *testing.T) {
	det, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	_, err = det.Detect(NewFrame(make([]uint8, 10), 2, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = DetectLanes(Frame{})
	assert.True(t, IsDimensionError(err))
}

func TestStages_SameSize(t *testing.T) {
	det, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	s, err := det.Stages(sceneFrame(testutil.TwoLaneScene(160, 120)))
	require.NoError(t, err)
	for _, g := range []*GrayImage{s.Gray, s.Masked, s.Edges} {
		assert.Equal(t, 160, g.Width)
		assert.Equal(t, 120, g.Height)
		assert.Len(t, g.Pix, 160*120)
	}
	assert.Len(t, s.Blurred.Pix, 160*120)
	assert.Equal(t, 160, s.ROI.Width)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"negative blur", func(c *Config) { c.BlurSigma = -1 }, true},
		{"zero blur", func(c *Config) { c.BlurSigma = 0 }, false},
		{"bad roi", func(c *Config) { c.ROI.TopY = 0.9 }, true},
		{"canny high below low", func(c *Config) { c.Canny.High = 10 }, true},
		{"negative canny blur", func(c *Config) { c.Canny.BlurSigma = -0.5 }, true},
		{"zero rho step", func(c *Config) { c.Hough.RhoStep = 0 }, true},
		{"theta step too large", func(c *Config) { c.Hough.ThetaStepDeg = 200 }, true},
		{"zero threshold", func(c *Config) { c.Hough.Threshold = 0 }, true},
		{"negative suppression", func(c *Config) { c.Hough.SuppressionRadius = -1 }, true},
		{"negative slope cutoff", func(c *Config) { c.MinAbsSlope = -0.1 }, true},
		{"unknown policy", func(c *Config) { c.SingleSidePolicy = "mirror" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewDetector(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig_ReferenceValues(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 2.0, cfg.BlurSigma, 0)
	assert.InDelta(t, 50.0, cfg.Canny.Low, 0)
	assert.InDelta(t, 150.0, cfg.Canny.High, 0)
	assert.InDelta(t, 1.0, cfg.Hough.RhoStep, 0)
	assert.InDelta(t, 1.0, cfg.Hough.ThetaStepDeg, 0)
	assert.Equal(t, 100, cfg.Hough.Threshold)
	assert.InDelta(t, 0.3, cfg.MinAbsSlope, 0)
	assert.Equal(t, SingleSideKeep, cfg.SingleSidePolicy)
}
