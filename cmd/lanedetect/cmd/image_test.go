package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageCommand_JSON(t *testing.T) {
	isolate(t)
	dir := writeScenes(t)

	out, _, err := executeCommand(t, "image", filepath.Join(dir, "two_lanes.png"), "--format", "json")
	require.NoError(t, err)

	var res pipeline.FrameResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	require.Len(t, res.Segments, 2)
	assert.False(t, res.Fallback)

	ax := testutil.LeftAnchorX(640)
	assert.InDelta(t, ax, res.Segments[0].X1, 15)
	assert.InDelta(t, 640-ax, res.Segments[1].X1, 15)
	assert.Equal(t, filepath.Join(dir, "two_lanes.png"), res.Source)
}

func TestImageCommand_TextMultiple(t *testing.T) {
	isolate(t)
	dir := writeScenes(t)

	out, _, err := executeCommand(t, "image",
		filepath.Join(dir, "left_only.png"), filepath.Join(dir, "blank.png"))
	require.NoError(t, err)
	assert.Contains(t, out, "left")
	assert.Contains(t, out, "fallback")
}

func TestImageCommand_CSVToFile(t *testing.T) {
	isolate(t)
	dir := writeScenes(t)
	outFile := filepath.Join(t.TempDir(), "lanes.csv")

	out, _, err := executeCommand(t, "image", filepath.Join(dir, "two_lanes.png"), "-f", "csv", "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Results written to")

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "source,side"))
}

func TestImageCommand_OutputCreatesDirectory(t *testing.T) {
	isolate(t)
	dir := writeScenes(t)
	outFile := filepath.Join(t.TempDir(), "out", "nested", "result.json")

	_, _, err := executeCommand(t, "image", filepath.Join(dir, "blank.png"), "-f", "json", "-o", outFile)
	require.NoError(t, err)
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fallback": true`)
}

func TestImageCommand_OverlayAndDebug(t *testing.T) {
	isolate(t)
	dir := writeScenes(t)
	overlayDir := filepath.Join(t.TempDir(), "overlays")
	debugDir := filepath.Join(t.TempDir(), "debug")

	_, _, err := executeCommand(t, "image", filepath.Join(dir, "two_lanes.png"),
		"--overlay-dir", overlayDir, "--draw-roi", "--debug-dir", debugDir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(overlayDir, "two_lanes_lanes.png"))
	for _, stage := range []string{"gray", "blur", "mask", "edges"} {
		assert.FileExists(t, filepath.Join(debugDir, "two_lanes_"+stage+".png"))
	}
	img := testutil.LoadImage(t, filepath.Join(overlayDir, "two_lanes_lanes.png"))
	assert.Equal(t, 640, img.Bounds().Dx())
}

func TestImageCommand_Resize(t *testing.T) {
	isolate(t)
	dir := writeScenes(t)

	out, _, err := executeCommand(t, "image", filepath.Join(dir, "blank.png"), "--resize", "320x240", "-f", "json")
	require.NoError(t, err)

	var res pipeline.FrameResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 320, res.Width)
	assert.Equal(t, 640, res.OriginalWidth)
	assert.True(t, res.Resized)
	assert.True(t, res.Fallback)
}

func TestImageCommand_Errors(t *testing.T) {
	isolate(t)
	dir := writeScenes(t)
	img := filepath.Join(dir, "two_lanes.png")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no files", []string{"image"}, "no input files"},
		{"missing file", []string{"image", "/non/existent/file.png"}, "failed to load"},
		{"bad format", []string{"image", img, "--format", "xml"}, "invalid output format"},
		{"bad policy", []string{"image", img, "--single-side", "maybe"}, "single side policy"},
		{"bad resize", []string{"image", img, "--resize", "big"}, "--resize"},
		{"bad color", []string{"image", img, "--overlay-color", "red"}, "overlay_color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
