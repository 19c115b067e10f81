package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario pairs a generated frame with what detection should report.
type Scenario struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputFile   string         `json:"input_file"`
	Expected    ExpectedLanes  `json:"expected"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ExpectedLanes describes the segments a scenario should produce. Bottom x
// positions are only checked when non-nil.
type ExpectedLanes struct {
	Segments     int      `json:"segments"`
	Fallback     bool     `json:"fallback"`
	LeftBottomX  *float64 `json:"left_bottom_x,omitempty"`
	RightBottomX *float64 `json:"right_bottom_x,omitempty"`
	Tolerance    float64  `json:"tolerance"`
}

func ptr(v float64) *float64 { return &v }

// StandardScenarios lists the generated scenarios for a width×height frame.
func StandardScenarios(width, height int) map[string]RoadScene {
	return map[string]RoadScene{
		"two_lanes": TwoLaneScene(width, height),
		"left_only": LeftOnlyScene(width, height),
		"blank":     BlankScene(width, height),
	}
}

// BuildScenario returns the fixture for a named standard scenario.
func BuildScenario(name string, width, height int) Scenario {
	ax := LeftAnchorX(width)
	// The anchor row sits on the bottom edge of the region of interest.
	base := Scenario{
		Name:      name,
		InputFile: name + ".png",
		Metadata:  map[string]any{"width": width, "height": height},
	}
	switch name {
	case "two_lanes":
		base.Description = "Two diagonal markings with slopes of about -0.7 and +0.7"
		base.Expected = ExpectedLanes{Segments: 2, LeftBottomX: ptr(ax), RightBottomX: ptr(float64(width) - ax), Tolerance: 15}
	case "left_only":
		base.Description = "A single left marking"
		base.Expected = ExpectedLanes{Segments: 1, LeftBottomX: ptr(ax), Tolerance: 15}
	default:
		base.Description = "Empty road surface"
		base.Expected = ExpectedLanes{Segments: 2, Fallback: true}
	}
	return base
}

// WriteScenarios renders every standard scenario into dir as PNG plus JSON
// and returns the fixtures keyed by name.
func WriteScenarios(t *testing.T, dir string, width, height int) map[string]Scenario {
	t.Helper()

	out := make(map[string]Scenario)
	for name, scene := range StandardScenarios(width, height) {
		sc := BuildScenario(name, width, height)
		SaveImage(t, scene.Render(), filepath.Join(dir, sc.InputFile))
		SaveScenario(t, dir, sc)
		out[name] = sc
	}
	return out
}

// SaveScenario writes sc to <dir>/<name>.json.
func SaveScenario(t *testing.T, dir string, sc Scenario) {
	t.Helper()

	require.NoError(t, EnsureDir(dir))
	data, err := json.MarshalIndent(sc, "", "  ")
	require.NoError(t, err, "Failed to marshal scenario to JSON")

	err = os.WriteFile(filepath.Join(dir, sc.Name+".json"), data, 0o600)
	require.NoError(t, err, "Failed to write scenario %s", sc.Name)
}

// LoadScenario reads <dir>/<name>.json.
func LoadScenario(t *testing.T, dir, name string) Scenario {
	t.Helper()

	path := filepath.Join(dir, name+".json")
	data, err := os.ReadFile(path) //nolint:gosec // G304: test fixture path
	require.NoError(t, err, "Failed to read scenario file: %s", path)

	var sc Scenario
	require.NoError(t, json.Unmarshal(data, &sc), "Failed to unmarshal scenario JSON")
	return sc
}
