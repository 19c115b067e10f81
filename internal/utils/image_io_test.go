package utils

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"frame.png", true},
		{"frame.JPG", true},
		{"frame.jpeg", true},
		{"dir/frame.bmp", true},
		{"frame.gif", false},
		{"frame", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSupportedImage(tt.path))
		})
	}
}

func writeTempPNG(t *testing.T, dir string, w, h int, col color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, col)
		}
	}
	path := filepath.Join(dir, "img.png")
	f, err := os.Create(path) //nolint:gosec // test path
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestLoadImageAndMetadata(t *testing.T) {
	path := writeTempPNG(t, t.TempDir(), 40, 20, color.White)

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 40, meta.Width)
	assert.Equal(t, 20, meta.Height)
	assert.InDelta(t, 2.0, meta.AspectRatio, 1e-9)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImage_Errors(t *testing.T) {
	var procErr *ImageProcessingError

	_, _, err := LoadImage("")
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "load", procErr.Operation)

	_, _, err = LoadImage("clip.gif")
	assert.ErrorContains(t, err, "unsupported format")

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	_, _, err = LoadImage(bad)
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "decode", procErr.Operation)
}

func TestDecodeImage(t *testing.T) {
	path := writeTempPNG(t, t.TempDir(), 8, 4, color.Black)
	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)

	img, meta, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, int64(len(data)), meta.SizeBytes)

	_, _, err = DecodeImage(nil)
	assert.Error(t, err)
	_, _, err = DecodeImage([]byte("garbage"))
	assert.Error(t, err)
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 6, 3))

	for _, name := range []string{"a/out.png", "out.jpg", "out.bmp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveImage(img, path), name)
		loaded, _, err := LoadImage(path)
		require.NoError(t, err)
		assert.Equal(t, 6, loaded.Bounds().Dx())
	}

	assert.Error(t, SaveImage(img, filepath.Join(dir, "out.xyz")))
	assert.Error(t, SaveImage(nil, filepath.Join(dir, "nil.png")))
}
