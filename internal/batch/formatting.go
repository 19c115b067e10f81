package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
)

func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "csv":
		return pipeline.ToCSV(r.Succeeded()...)
	case "", "text":
		return formatText(r)
	default:
		return "", fmt.Errorf("unsupported format %q (want text, json or csv)", format)
	}
}

func formatJSON(r *Result) (string, error) {
	out := struct {
		RunID  string                  `json:"run_id,omitempty"`
		Frames []*pipeline.FrameResult `json:"frames"`
		Errors []FrameError            `json:"errors,omitempty"`
	}{
		RunID:  r.RunID,
		Frames: r.Succeeded(),
		Errors: r.Errors,
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func formatText(r *Result) (string, error) {
	var sb strings.Builder
	for i, res := range r.Succeeded() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		text, err := pipeline.ToPlainText(res)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&sb, "\n%s: error: %s\n", e.Source, e.Error)
	}
	return sb.String(), nil
}
