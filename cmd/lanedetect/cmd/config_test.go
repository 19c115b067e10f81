package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitAndShow(t *testing.T) {
	isolate(t)

	out, _, err := executeCommand(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "lanedetect.yaml")
	require.FileExists(t, "lanedetect.yaml")

	_, _, err = executeCommand(t, "config", "init")
	require.Error(t, err, "existing files are not overwritten")

	out, _, err = executeCommand(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# loaded from")
	assert.Contains(t, out, "threshold: 100")
}

func TestConfigShow_FileAndEnv(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detector:\n  hough:\n    threshold: 42\n"), 0o600))
	t.Setenv("LANEDETECT_SERVER_PORT", "9191")

	out, _, err := executeCommand(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "threshold: 42")
	assert.Contains(t, out, "port: 9191")
}

func TestConfigPaths(t *testing.T) {
	isolate(t)

	out, _, err := executeCommand(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "/etc/lanedetect")
}
