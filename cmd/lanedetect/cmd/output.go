package cmd

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/lanedetect/internal/config"
	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
)

// formatResults renders results in the configured output format.
func formatResults(results []*pipeline.FrameResult, format string) (string, error) {
	switch format {
	case outputFormatJSON:
		if len(results) == 1 {
			return pipeline.ToJSON(results[0])
		}
		return pipeline.ToJSONMany(results)
	case outputFormatCSV:
		return pipeline.ToCSV(results...)
	default:
		parts := make([]string, 0, len(results))
		for _, res := range results {
			s, err := pipeline.ToPlainText(res)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n\n"), nil
	}
}

// writeResults prints results to w or, when file is set, writes them there.
func writeResults(w io.Writer, results []*pipeline.FrameResult, format, file string) error {
	out, err := formatResults(results, format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if file == "" {
		_, err = io.WriteString(w, out)
		return err
	}
	if err := writeOutputFile(file, []byte(out)); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Results written to %s\n", file)
	return nil
}

// writeMatrix writes the segments of res as a packed float64 matrix. On
// stdout the bytes are written raw with no trailing newline.
func writeMatrix(w io.Writer, res *pipeline.FrameResult, file string) error {
	var buf bytes.Buffer
	if err := lanes.WriteSegmentMatrix(&buf, res.Segments); err != nil {
		return fmt.Errorf("failed to encode segment matrix: %w", err)
	}
	if file == "" {
		_, err := w.Write(buf.Bytes())
		return err
	}
	return writeOutputFile(file, buf.Bytes())
}

func writeOutputFile(file string, data []byte) error {
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(file, data, 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// writeOverlay draws res on img and saves it as <dir>/<name>_lanes.png.
func writeOverlay(cfg *config.Config, img image.Image, res *pipeline.FrameResult, name string) (string, error) {
	opts, err := cfg.ToOverlayOptions()
	if err != nil {
		return "", err
	}
	overlay, err := pipeline.RenderOverlay(img, res, opts)
	if err != nil {
		return "", err
	}
	path := filepath.Join(cfg.Output.OverlayDir, baseName(name)+"_lanes.png")
	if err := utils.SaveImage(overlay, path); err != nil {
		return "", err
	}
	return path, nil
}

// writeDebugStages saves the intermediate images of one frame as
// <dir>/<name>_<stage>.png.
func writeDebugStages(dir, name string, det *lanes.Detector, f lanes.Frame) error {
	st, err := det.Stages(f)
	if err != nil {
		return err
	}
	images := []struct {
		stage string
		img   image.Image
	}{
		{lanes.StageGray, st.Gray.ToImage()},
		{lanes.StageBlur, st.Blurred.ToGray().ToImage()},
		{lanes.StageMask, st.Masked.ToImage()},
		{lanes.StageEdges, st.Edges.ToImage()},
	}
	for _, s := range images {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", baseName(name), s.stage))
		if err := utils.SaveImage(s.img, path); err != nil {
			return fmt.Errorf("write %s stage: %w", s.stage, err)
		}
	}
	return nil
}
