package benchmark

import (
	"context"
	"fmt"
	"image"
	"io"
	"runtime"
	"strings"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/testutil"
)

// Size is a frame size to benchmark.
type Size struct {
	Width, Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// ParseSizes reads a comma separated list such as "320x240,640x480".
func ParseSizes(list string) ([]Size, error) {
	var out []Size
	for part := range strings.SplitSeq(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var s Size
		if _, err := fmt.Sscanf(part, "%dx%d", &s.Width, &s.Height); err != nil || s.Width <= 0 || s.Height <= 0 {
			return nil, fmt.Errorf("invalid size %q (want WxH)", part)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sizes in %q", list)
	}
	return out, nil
}

// StageSuite registers one benchmark per detection stage and one for the
// whole detector, each on a rendered two-lane scene of the given size.
func StageSuite(cfg lanes.Config, sizes []Size) (*Suite, error) {
	det, err := lanes.NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	suite := NewSuite()
	for _, sz := range sizes {
		frame := lanes.NewFrame(testutil.TwoLaneScene(sz.Width, sz.Height).BGR(), sz.Width, sz.Height)
		st, err := det.Stages(frame)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sz, err)
		}

		suite.Add("Gray_"+sz.String(), func() error {
			lanes.ToGray(frame)
			return nil
		})
		suite.Add("Blur_"+sz.String(), func() error {
			lanes.GaussianBlur(st.Gray, cfg.BlurSigma)
			return nil
		})
		suite.Add("Mask_"+sz.String(), func() error {
			lanes.MaskRegion(st.Blurred, st.ROI)
			return nil
		})
		suite.Add("Edges_"+sz.String(), func() error {
			lanes.Canny(st.Masked, cfg.Canny)
			return nil
		})
		suite.Add("Hough_"+sz.String(), func() error {
			lanes.HoughLines(st.Edges, cfg.Hough)
			return nil
		})
		suite.Add("Detect_"+sz.String(), func() error {
			_, err := det.Detect(frame)
			return err
		})
	}
	return suite, nil
}

// ParallelResult compares sequential and worker pool processing of one batch.
type ParallelResult struct {
	Size          Size
	Frames        int
	Workers       int
	Sequential    Result
	Parallel      Result
	SpeedupFactor float64
}

// String returns a one-line summary.
func (r ParallelResult) String() string {
	if r.Sequential.Error != nil {
		return fmt.Sprintf("%s: sequential failed: %v", r.Size, r.Sequential.Error)
	}
	if r.Parallel.Error != nil {
		return fmt.Sprintf("%s: parallel failed: %v", r.Size, r.Parallel.Error)
	}
	return fmt.Sprintf("%s x%d: sequential %v, parallel %v with %d workers (%.2fx)",
		r.Size, r.Frames, r.Sequential.Average(), r.Parallel.Average(), r.Workers, r.SpeedupFactor)
}

// SequentialVsParallel times ProcessImages against ProcessImagesParallel.
type SequentialVsParallel struct {
	cfg     pipeline.Config
	frames  int
	workers int
	results []ParallelResult
}

// NewSequentialVsParallel batches frames images per size. workers <= 0 uses every CPU.
func NewSequentialVsParallel(cfg pipeline.Config, frames, workers int) *SequentialVsParallel {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &SequentialVsParallel{cfg: cfg, frames: max(frames, 1), workers: workers}
}

// Run benchmarks every size for iterations rounds.
func (b *SequentialVsParallel) Run(ctx context.Context, sizes []Size, iterations int) ([]ParallelResult, error) {
	pl, err := pipeline.NewBuilder().WithConfig(b.cfg).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build lane pipeline: %w", err)
	}
	defer func() { _ = pl.Close() }()

	b.results = b.results[:0]
	for _, sz := range sizes {
		imgs := make([]image.Image, b.frames)
		for i := range imgs {
			scene := testutil.TwoLaneScene(sz.Width, sz.Height)
			scene.Noise = 4
			scene.Seed = uint64(i + 1) //nolint:gosec // G115: i is a small index
			imgs[i] = scene.Render()
		}

		suite := NewSuite()
		suite.Add("sequential", func() error {
			_, err := pl.ProcessImages(ctx, imgs)
			return err
		})
		par := pipeline.ParallelConfig{MaxWorkers: b.workers}
		suite.Add("parallel", func() error {
			_, err := pl.ProcessImagesParallel(ctx, imgs, par)
			return err
		})
		res := suite.RunAll(iterations)

		pr := ParallelResult{Size: sz, Frames: b.frames, Workers: b.workers, Sequential: res[0], Parallel: res[1]}
		if pr.Parallel.Duration > 0 && pr.Sequential.Error == nil && pr.Parallel.Error == nil {
			pr.SpeedupFactor = float64(pr.Sequential.Duration) / float64(pr.Parallel.Duration)
		}
		b.results = append(b.results, pr)
	}
	return b.results, nil
}

// Results returns the last Run results.
func (b *SequentialVsParallel) Results() []ParallelResult {
	return b.results
}

// PrintDetailedResults writes system information, per size results and a summary to w.
func (b *SequentialVsParallel) PrintDetailedResults(w io.Writer) {
	if len(b.results) == 0 {
		_, _ = fmt.Fprintln(w, "No benchmark results available")
		return
	}

	_, _ = fmt.Fprintln(w, "\n"+strings.Repeat("=", 72))
	_, _ = fmt.Fprintln(w, "Sequential vs Parallel Lane Detection")
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 72))

	_, _ = fmt.Fprintf(w, "System Information:\n")
	_, _ = fmt.Fprintf(w, "  GOOS: %s\n", runtime.GOOS)
	_, _ = fmt.Fprintf(w, "  GOARCH: %s\n", runtime.GOARCH)
	_, _ = fmt.Fprintf(w, "  NumCPU: %d\n", runtime.NumCPU())
	_, _ = fmt.Fprintf(w, "  Go Version: %s\n\n", runtime.Version())

	_, _ = fmt.Fprintln(w, "Per Size Results:")
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, r := range b.results {
		_, _ = fmt.Fprintf(w, "  %s\n", r.String())
	}
	_, _ = fmt.Fprintln(w)

	var seq, par float64
	ok := 0
	for _, r := range b.results {
		if r.SpeedupFactor > 0 {
			seq += float64(r.Sequential.Duration)
			par += float64(r.Parallel.Duration)
			ok++
		}
	}
	_, _ = fmt.Fprintln(w, "Summary:")
	if ok == 0 {
		_, _ = fmt.Fprintln(w, "  no successful comparisons")
		return
	}
	_, _ = fmt.Fprintf(w, "  Overall Speedup: %.2fx over %d size(s)\n", seq/par, ok)
}

// WriteCSV writes one row per size.
func WriteCSV(w io.Writer, results []ParallelResult) error {
	if _, err := fmt.Fprintln(w, "size,frames,workers,sequential_ms,parallel_ms,speedup"); err != nil {
		return err
	}
	for _, r := range results {
		_, err := fmt.Fprintf(w, "%s,%d,%d,%.3f,%.3f,%.2f\n", r.Size, r.Frames, r.Workers,
			float64(r.Sequential.Average().Nanoseconds())/1e6,
			float64(r.Parallel.Average().Nanoseconds())/1e6,
			r.SpeedupFactor)
		if err != nil {
			return err
		}
	}
	return nil
}
