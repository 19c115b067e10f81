// Package batch runs lane detection over files and directories of images.
package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	Pipeline pipeline.Config

	// Output
	Format     string
	OutputFile string
	OverlayDir string
	// Overlay styles the images written to OverlayDir. A zero value draws
	// with pipeline.DefaultOverlayOptions.
	Overlay pipeline.OverlayOptions

	// File discovery
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Run history database; empty disables persistence.
	DBPath string

	// Progress
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration

	// Stdout receives results and progress; defaults to os.Stdout.
	Stdout io.Writer
}

func (c *Config) overlayOptions() pipeline.OverlayOptions {
	if c.Overlay.Color == nil {
		return pipeline.DefaultOverlayOptions()
	}
	return c.Overlay
}

func (c *Config) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

// FrameError is a per-file failure that did not abort the batch.
type FrameError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Result holds the outcome of a batch.
type Result struct {
	Results     []*pipeline.FrameResult
	ImagePaths  []string
	Errors      []FrameError
	Duration    time.Duration
	WorkerCount int
	RunID       string
}

// Succeeded returns the non-nil results in input order.
func (r *Result) Succeeded() []*pipeline.FrameResult {
	out := make([]*pipeline.FrameResult, 0, len(r.Results))
	for _, res := range r.Results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}

// FormatResults renders the batch as json, csv or text.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile == "" {
		_, err = fmt.Fprint(w, output)
		return err
	}
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if !quiet {
		_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
	}
	return nil
}

// Stats summarizes throughput and outcome counts.
func (r *Result) Stats() pipeline.ParallelStats {
	return pipeline.CalculateParallelStats(r.Results, r.Duration, r.WorkerCount)
}

// PrintStats writes processing statistics to w.
func (r *Result) PrintStats(w io.Writer) {
	st := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", st.TotalFrames)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", st.ProcessedFrames)
	_, _ = fmt.Fprintf(w, "  Fallback: %d\n", st.FallbackFrames)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", st.FailedFrames)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", st.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", st.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", st.AveragePerFrame.Round(time.Microsecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", st.ThroughputPerSec)
	if r.RunID != "" {
		_, _ = fmt.Fprintf(w, "  Run: %s\n", r.RunID)
	}
}
