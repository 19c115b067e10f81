package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
)

// SideFallback labels rows produced by the no-vote fallback.
const SideFallback = "fallback"

var csvHeader = []string{"source", "side", "x1", "y1", "x2", "y2", "slope", "votes"}

// ToJSON serializes one result as indented JSON.
func ToJSON(res *FrameResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONMany serializes several results as an indented JSON array.
func ToJSONMany(results []*FrameResult) (string, error) {
	if results == nil {
		results = []*FrameResult{}
	}
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type segmentRow struct {
	side  string
	seg   lanes.Segment
	votes int
}

func rowsOf(res *FrameResult) []segmentRow {
	if res.Fallback {
		rows := make([]segmentRow, len(res.Segments))
		for i, s := range res.Segments {
			rows[i] = segmentRow{side: SideFallback, seg: s}
		}
		return rows
	}
	rows := make([]segmentRow, 0, len(res.Lanes))
	for _, l := range res.Lanes {
		rows = append(rows, segmentRow{side: l.Side, seg: l.Segment, votes: l.Votes})
	}
	return rows
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// ToCSV writes one row per segment of every result under a shared header.
// Vertical and degenerate segments leave the slope column empty.
func ToCSV(results ...*FrameResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for i, res := range results {
		if res == nil {
			return "", fmt.Errorf("result %d is nil", i)
		}
		for _, r := range rowsOf(res) {
			row := []string{
				res.Source,
				r.side,
				formatFloat(r.seg.X1),
				formatFloat(r.seg.Y1),
				formatFloat(r.seg.X2),
				formatFloat(r.seg.Y2),
				formatFloat(r.seg.Slope()),
				strconv.Itoa(r.votes),
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ToPlainText renders a short human readable summary.
func ToPlainText(res *FrameResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var sb strings.Builder
	if res.Source != "" {
		fmt.Fprintf(&sb, "%s: ", res.Source)
	}
	fmt.Fprintf(&sb, "%dx%d, %d hough lines, %d candidates\n", res.Width, res.Height, res.Lines, res.Candidates)
	rows := rowsOf(res)
	if len(rows) == 0 {
		sb.WriteString("no lanes\n")
		return sb.String(), nil
	}
	for _, r := range rows {
		fmt.Fprintf(&sb, "%-8s (%.1f, %.1f) -> (%.1f, %.1f)", r.side, r.seg.X1, r.seg.Y1, r.seg.X2, r.seg.Y2)
		if r.votes > 0 {
			fmt.Fprintf(&sb, " votes=%d", r.votes)
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// ValidateResult checks the structural guarantees of a detection result.
func ValidateResult(res *FrameResult) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.Width <= 0 || res.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", res.Width, res.Height)
	}
	if len(res.Segments) > 2 {
		return fmt.Errorf("expected at most 2 segments, got %d", len(res.Segments))
	}
	if res.Fallback {
		for i, s := range res.Segments {
			if !s.IsZero() {
				return fmt.Errorf("fallback segment %d is not zero", i)
			}
		}
		return nil
	}
	top, bottom := res.ROI.TopY(), res.ROI.BottomY()
	for i, s := range res.Segments {
		for _, v := range []float64{s.X1, s.Y1, s.X2, s.Y2} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("segment %d has non-finite coordinate", i)
			}
		}
		if s.Y1 != bottom || s.Y2 != top {
			return fmt.Errorf("segment %d spans y %v..%v, want %v..%v", i, s.Y1, s.Y2, bottom, top)
		}
	}
	return nil
}
