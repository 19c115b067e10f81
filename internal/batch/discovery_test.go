package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	return path
}

func TestDiscoverImageFiles_EmptyArgs(t *testing.T) {
	files, err := discoverImageFiles(nil, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverImageFiles_DirectoryFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	png := touch(t, filepath.Join(dir, "b.png"))
	jpg := touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "notes.txt"))

	files, err := discoverImageFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{jpg, png}, files)
}

func TestDiscoverImageFiles_Recursive(t *testing.T) {
	dir := t.TempDir()
	root := touch(t, filepath.Join(dir, "root.png"))
	sub := touch(t, filepath.Join(dir, "sub", "deep.png"))

	flat, err := discoverImageFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{root}, flat)

	all, err := discoverImageFiles([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{root, sub}, all)
}

func TestDiscoverImageFiles_Patterns(t *testing.T) {
	dir := t.TempDir()
	keep := touch(t, filepath.Join(dir, "road_01.png"))
	touch(t, filepath.Join(dir, "road_01_lanes.png"))
	touch(t, filepath.Join(dir, "sky.png"))

	files, err := discoverImageFiles([]string{dir}, false, []string{"road_*"}, []string{"*_lanes.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestDiscoverImageFiles_PatternsKeepExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	keep := touch(t, filepath.Join(dir, "two_lanes.png"))
	touch(t, filepath.Join(dir, "two_lanes.json"))
	touch(t, filepath.Join(dir, "two_lanes.bgr"))

	files, err := discoverImageFiles([]string{dir}, false, []string{"two_*"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestDiscoverImageFiles_ExplicitFilesAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	png := touch(t, filepath.Join(dir, "frame.png"))
	raw := touch(t, filepath.Join(dir, "frame.dat"))

	files, err := discoverImageFiles([]string{png, raw, dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{raw, png}, files)
}

func TestDiscoverImageFiles_Missing(t *testing.T) {
	_, err := discoverImageFiles([]string{"/nonexistent/road.png"}, false, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestShouldIncludeFile(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		include []string
		exclude []string
		want    bool
	}{
		{"no patterns", "/a/b.png", nil, nil, true},
		{"include match", "/a/b.png", []string{"*.png"}, nil, true},
		{"include miss", "/a/b.jpg", []string{"*.png"}, nil, false},
		{"exclude wins", "/a/b.png", []string{"*.png"}, []string{"b.*"}, false},
		{"base name only", "/png/b.jpg", []string{"png*"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldIncludeFile(tt.path, tt.include, tt.exclude))
		})
	}
}
