package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/store"
)

// ProcessBatch discovers images under args and detects lanes in each. Files
// that fail to load or process are reported in Result.Errors; only discovery,
// setup and cancellation abort the batch.
func ProcessBatch(ctx context.Context, args []string, cfg *Config) (*Result, error) {
	files, err := discoverImageFiles(args, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	pl, err := pipeline.NewBuilder().WithConfig(cfg.Pipeline).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build lane pipeline: %w", err)
	}
	defer func() { _ = pl.Close() }()

	imgs, loadErrs := loadImages(files)
	result := &Result{
		Results:     make([]*pipeline.FrameResult, len(files)),
		ImagePaths:  files,
		Errors:      loadErrs,
		WorkerCount: cfg.Pipeline.Parallel.MaxWorkers,
	}
	if result.WorkerCount <= 0 {
		result.WorkerCount = runtime.NumCPU()
	}

	loaded := make([]image.Image, 0, len(files))
	index := make([]int, 0, len(files))
	for i, img := range imgs {
		if img != nil {
			loaded = append(loaded, img)
			index = append(index, i)
		}
	}

	start := time.Now()
	if len(loaded) > 0 {
		if err := processLoaded(ctx, pl, cfg, loaded, index, result); err != nil {
			return nil, err
		}
	}
	result.Duration = time.Since(start)

	if cfg.OverlayDir != "" {
		opts := cfg.overlayOptions()
		for i, res := range result.Results {
			if res == nil {
				continue
			}
			if err := saveOverlay(imgs[i], res, cfg.OverlayDir, opts); err != nil {
				slog.Warn("failed to write overlay", "file", res.Source, "error", err)
			}
		}
	}

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open run database: %w", err)
		}
		defer func() { _ = st.Close() }()
		runID, err := recordRun(st, strings.Join(args, ","), cfg.Pipeline, result)
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		result.RunID = runID
		slog.Info("batch run recorded", "run_id", runID, "db", cfg.DBPath)
	}

	return result, nil
}

func processLoaded(ctx context.Context, pl *pipeline.Pipeline, cfg *Config,
	imgs []image.Image, index []int, result *Result) error {
	par := cfg.Pipeline.Parallel
	par.ProgressCallback = nil
	if cfg.ShowProgress && !cfg.Quiet {
		par.ProgressCallback = pipeline.NewConsoleProgressCallback(cfg.stdout(), "Processing: ").
			WithUpdateInterval(cfg.ProgressInterval)
	}
	par.ErrorHandler = func(i int, err error) {
		path := result.ImagePaths[index[i]]
		slog.Warn("lane detection failed", "file", path, "error", err)
		result.Errors = append(result.Errors, FrameError{Source: path, Error: err.Error()})
	}

	results, err := pl.ProcessImagesParallel(ctx, imgs, par)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("batch processing cancelled: %w", ctxErr)
	}
	if err != nil {
		slog.Debug("batch finished with errors", "first", err)
	}
	for i, res := range results {
		if res == nil {
			continue
		}
		res.Source = result.ImagePaths[index[i]]
		result.Results[index[i]] = res
	}
	return nil
}
