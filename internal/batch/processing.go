package batch

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/store"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
)

// loadImages decodes every path. Failures are returned per path so the
// remaining images can still be processed.
func loadImages(paths []string) ([]image.Image, []FrameError) {
	imgs := make([]image.Image, len(paths))
	var errs []FrameError
	for i, p := range paths {
		img, _, err := utils.LoadImage(p)
		if err != nil {
			slog.Warn("skipping unreadable image", "file", p, "error", err)
			errs = append(errs, FrameError{Source: p, Error: err.Error()})
			continue
		}
		imgs[i] = img
	}
	return imgs, errs
}

// overlayPath maps an input path to <dir>/<name>_lanes.png.
func overlayPath(dir, src string) string {
	base := filepath.Base(src)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_lanes.png")
}

func saveOverlay(img image.Image, res *pipeline.FrameResult, dir string, opts pipeline.OverlayOptions) error {
	ov, err := pipeline.RenderOverlay(img, res, opts)
	if err != nil {
		return err
	}
	return utils.SaveImage(ov, overlayPath(dir, res.Source))
}

// recordRun writes every input's outcome under a new run and finalizes it.
func recordRun(st *store.Store, source string, cfg pipeline.Config, r *Result) (string, error) {
	run, err := st.CreateRun(source, cfg.Detector)
	if err != nil {
		return "", err
	}
	failed := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		failed[e.Source] = e.Error
	}
	for i, path := range r.ImagePaths {
		rec := &store.FrameRecord{RunID: run.RunID, Source: path}
		if res := r.Results[i]; res != nil {
			rec.Width, rec.Height = res.Width, res.Height
			rec.Fallback = res.Fallback
			rec.Lines, rec.Candidates = res.Lines, res.Candidates
			rec.Segments = res.Segments
			rec.DurationNs = res.Timing.TotalNs
		} else {
			rec.Error = failed[path]
			if rec.Error == "" {
				rec.Error = "not processed"
			}
		}
		if err := st.AddFrameResult(rec); err != nil {
			return run.RunID, fmt.Errorf("record %s: %w", path, err)
		}
	}
	return run.RunID, st.FinishRun(run.RunID)
}
