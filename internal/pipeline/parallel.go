package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback // Optional progress reporting
	ErrorHandler     func(int, error) // Optional per-image error handler
}

// DefaultParallelConfig uses one worker per CPU.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type imageJob struct {
	index int
	image image.Image
}

type imageResult struct {
	index  int
	result *FrameResult
	err    error
}

// ProcessImagesParallel runs images through a worker pool. Results keep the
// input order; failed entries are nil and the first failure is returned as
// the error after every image was attempted.
func (p *Pipeline) ProcessImagesParallel(ctx context.Context, images []image.Image, config ParallelConfig) ([]*FrameResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if err := p.ready(); err != nil {
		return nil, err
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, len(images))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(images))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan imageJob, len(images))
	results := make(chan imageResult, len(images))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- imageJob{index: i, image: img}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*FrameResult, len(images))
	errs := make(map[int]error)
	done := 0
	for r := range results {
		done++
		if r.err != nil {
			errs[r.index] = r.err
			if config.ProgressCallback != nil {
				config.ProgressCallback.OnError(r.index, r.err)
			}
		} else {
			ordered[r.index] = r.result
		}
		if config.ProgressCallback != nil {
			config.ProgressCallback.OnProgress(done, len(images))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstError error
	for i := range images {
		err, ok := errs[i]
		if !ok {
			continue
		}
		if firstError == nil {
			firstError = fmt.Errorf("image %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, err)
		}
	}
	return ordered, firstError
}

func (p *Pipeline) worker(ctx context.Context, jobs <-chan imageJob, results chan<- imageResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res, err := p.ProcessImageContext(ctx, job.image)
			select {
			case results <- imageResult{index: job.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats summarizes a parallel run.
type ParallelStats struct {
	TotalFrames      int           `json:"total_frames"`
	ProcessedFrames  int           `json:"processed_frames"`
	FailedFrames     int           `json:"failed_frames"`
	FallbackFrames   int           `json:"fallback_frames"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerFrame  time.Duration `json:"average_per_frame_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateParallelStats derives throughput figures from a result slice.
func CalculateParallelStats(results []*FrameResult, duration time.Duration, workerCount int) ParallelStats {
	st := ParallelStats{TotalFrames: len(results), WorkerCount: workerCount, TotalDuration: duration}
	for _, r := range results {
		switch {
		case r == nil:
			st.FailedFrames++
		case r.Fallback:
			st.ProcessedFrames++
			st.FallbackFrames++
		default:
			st.ProcessedFrames++
		}
	}
	if st.ProcessedFrames > 0 && duration > 0 {
		st.AveragePerFrame = duration / time.Duration(st.ProcessedFrames)
		st.ThroughputPerSec = float64(st.ProcessedFrames) / duration.Seconds()
	}
	return st
}
