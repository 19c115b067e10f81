package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/lanedetect/internal/testutil"
	"github.com/stretchr/testify/require"
)

// isolate keeps tests away from real config files.
func isolate(t *testing.T) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Chdir(t.TempDir())
}

// executeCommand runs a fresh root command and returns stdout, stderr and the error.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

// writeScenes renders the standard scenarios into a temp dir.
func writeScenes(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	testutil.WriteScenarios(t, dir, 640, 480)
	require.FileExists(t, filepath.Join(dir, "two_lanes.png"))
	return dir
}
