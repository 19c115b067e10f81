package lanes

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/lanedetect/internal/common"
)

// Stage names used in timings and errors.
const (
	StageGray  = "gray"
	StageBlur  = "blur"
	StageMask  = "mask"
	StageEdges = "edges"
	StageLines = "lines"
)

// Config collects the numeric parameters of the pipeline.
type Config struct {
	BlurSigma        float64          `mapstructure:"blur_sigma" yaml:"blur_sigma" json:"blur_sigma"`
	ROI              ROIConfig        `mapstructure:"roi" yaml:"roi" json:"roi"`
	Canny            CannyOptions     `mapstructure:"canny" yaml:"canny" json:"canny"`
	Hough            HoughOptions     `mapstructure:"hough" yaml:"hough" json:"hough"`
	MinAbsSlope      float64          `mapstructure:"min_abs_slope" yaml:"min_abs_slope" json:"min_abs_slope"`
	SingleSidePolicy SingleSidePolicy `mapstructure:"single_side_policy" yaml:"single_side_policy" json:"single_side_policy"`
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	est := DefaultEstimateOptions()
	return Config{
		BlurSigma:        2,
		ROI:              DefaultROIConfig(),
		Canny:            DefaultCannyOptions(),
		Hough:            DefaultHoughOptions(),
		MinAbsSlope:      est.MinAbsSlope,
		SingleSidePolicy: est.SingleSide,
	}
}

// Validate checks every parameter.
func (c Config) Validate() error {
	if c.BlurSigma < 0 {
		return fmt.Errorf("blur_sigma must be >= 0, got %v", c.BlurSigma)
	}
	if err := c.ROI.Validate(); err != nil {
		return err
	}
	if c.Canny.Low < 0 || c.Canny.High < c.Canny.Low {
		return fmt.Errorf("canny: need 0 <= low <= high, got %v/%v", c.Canny.Low, c.Canny.High)
	}
	if c.Canny.BlurSigma < 0 {
		return fmt.Errorf("canny: blur_sigma must be >= 0, got %v", c.Canny.BlurSigma)
	}
	if c.Hough.RhoStep <= 0 || c.Hough.ThetaStepDeg <= 0 || c.Hough.ThetaStepDeg > 180 {
		return fmt.Errorf("hough: need rho_step > 0 and 0 < theta_step_deg <= 180, got %v/%v",
			c.Hough.RhoStep, c.Hough.ThetaStepDeg)
	}
	if c.Hough.Threshold < 1 {
		return fmt.Errorf("hough: threshold must be >= 1, got %d", c.Hough.Threshold)
	}
	if c.Hough.SuppressionRadius < 0 {
		return fmt.Errorf("hough: suppression_radius must be >= 0, got %d", c.Hough.SuppressionRadius)
	}
	if c.MinAbsSlope < 0 {
		return fmt.Errorf("min_abs_slope must be >= 0, got %v", c.MinAbsSlope)
	}
	return c.SingleSidePolicy.Validate()
}

// StageTiming holds per stage wall time in nanoseconds.
type StageTiming struct {
	GrayNs  int64 `json:"gray_ns"`
	BlurNs  int64 `json:"blur_ns"`
	MaskNs  int64 `json:"mask_ns"`
	EdgesNs int64 `json:"edges_ns"`
	LinesNs int64 `json:"lines_ns"`
	TotalNs int64 `json:"total_ns"`
}

// Result is the detection outcome for one frame.
type Result struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Segments   []Segment   `json:"segments"`
	Lanes      []Lane      `json:"lanes,omitempty"`
	Lines      int         `json:"hough_lines"`
	Candidates int         `json:"candidates"`
	Fallback   bool        `json:"fallback"`
	ROI        ROI         `json:"roi"`
	Timing     StageTiming `json:"timing"`
}

// Stages exposes the intermediate images of one run.
type Stages struct {
	Gray    *GrayImage
	Blurred *FloatImage
	Masked  *GrayImage
	Edges   *GrayImage
	Lines   []PolarLine
	ROI     ROI
}

// Detector runs the pipeline with a fixed configuration. It holds no per
// frame state and is safe for concurrent use.
type Detector struct {
	cfg Config
}

// NewDetector validates cfg and returns a detector.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lane detector config: %w", err)
	}
	return &Detector{cfg: cfg}, nil
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config { return d.cfg }

// Stages runs every stage up to the Hough vote and returns the intermediates.
func (d *Detector) Stages(f Frame) (*Stages, error) {
	s, _, err := d.run(f, nil)
	return s, err
}

func (d *Detector) run(f Frame, sw *common.Stopwatch) (*Stages, ROI, error) {
	if err := f.Validate(); err != nil {
		return nil, ROI{}, err
	}
	lap := func(string) {}
	if sw != nil {
		lap = func(name string) { sw.Lap(name) }
	}
	roi, err := NewROI(f.Width, f.Height, d.cfg.ROI)
	if err != nil {
		return nil, ROI{}, &StageError{Stage: StageMask, Err: err}
	}

	s := &Stages{ROI: roi}
	s.Gray = ToGray(f)
	lap(StageGray)
	s.Blurred = GaussianBlur(s.Gray, d.cfg.BlurSigma)
	lap(StageBlur)
	s.Masked = MaskRegion(s.Blurred, roi)
	lap(StageMask)
	s.Edges = Canny(s.Masked, d.cfg.Canny)
	lap(StageEdges)
	s.Lines = HoughLines(s.Edges, d.cfg.Hough)
	lap(StageLines)
	return s, roi, nil
}

// Detect returns the lane segments of f. Frames without any line votes
// produce the fallback pair and no error.
func (d *Detector) Detect(f Frame) (*Result, error) {
	sw := common.NewNamedStopwatch("lanes")
	s, roi, err := d.run(f, sw)
	if err != nil {
		return nil, err
	}
	est := EstimateLanes(s.Lines, roi, EstimateOptions{
		MinAbsSlope: d.cfg.MinAbsSlope,
		SingleSide:  d.cfg.SingleSidePolicy,
	})
	sw.Stop()

	segs := est.Segments
	if segs == nil {
		segs = []Segment{}
	}
	return &Result{
		Width:      f.Width,
		Height:     f.Height,
		Segments:   segs,
		Lanes:      est.Lanes,
		Lines:      len(s.Lines),
		Candidates: est.Candidates,
		Fallback:   est.Fallback,
		ROI:        roi,
		Timing:     timingFrom(sw),
	}, nil
}

func timingFrom(sw *common.Stopwatch) StageTiming {
	ns := func(name string) int64 {
		d, _ := sw.LapDuration(name)
		return d.Nanoseconds()
	}
	return StageTiming{
		GrayNs:  ns(StageGray),
		BlurNs:  ns(StageBlur),
		MaskNs:  ns(StageMask),
		EdgesNs: ns(StageEdges),
		LinesNs: ns(StageLines),
		TotalNs: sw.Total().Nanoseconds(),
	}
}

var defaultDetector = &Detector{cfg: DefaultConfig()}

// DetectLanes runs the default pipeline on f and returns its segments.
func DetectLanes(f Frame) ([]Segment, error) {
	res, err := defaultDetector.Detect(f)
	if err != nil {
		return nil, err
	}
	return res.Segments, nil
}

// IsDimensionError reports whether err was caused by a degenerate frame.
func IsDimensionError(err error) bool {
	return errors.Is(err, ErrInvalidDimensions)
}
