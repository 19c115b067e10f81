package testutil

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Stripe is a straight painted band, the set of pixels whose center lies within
// Width/2 of the line x·cos(θ) + y·sin(θ) = Rho.
type Stripe struct {
	ThetaDeg float64
	Rho      float64
	Width    float64
	Color    color.NRGBA
}

// StripeThrough returns a stripe whose center line passes through (x, y) with
// normal angle thetaDeg.
func StripeThrough(x, y, thetaDeg, width float64, c color.NRGBA) Stripe {
	s, co := math.Sincos(thetaDeg * math.Pi / 180)
	return Stripe{ThetaDeg: thetaDeg, Rho: x*co + y*s, Width: width, Color: c}
}

func (s Stripe) covers(x, y float64) bool {
	sn, cs := math.Sincos(s.ThetaDeg * math.Pi / 180)
	return math.Abs(x*cs+y*sn-s.Rho) <= s.Width/2
}

// RoadScene describes a synthetic dash-cam frame.
type RoadScene struct {
	Width      int
	Height     int
	Background color.NRGBA
	Stripes    []Stripe
	// Noise is the standard deviation of additive gray noise in 8-bit levels.
	Noise float64
	Seed  uint64
}

var (
	// LaneWhite is the paint color of generated lane markings.
	LaneWhite = color.NRGBA{255, 255, 255, 255}
	// Asphalt is a black road surface.
	Asphalt = color.NRGBA{0, 0, 0, 255}
)

// Normal angles giving image slopes of about -0.7 (left) and +0.7 (right).
const (
	LeftThetaDeg  = 55.0
	RightThetaDeg = 125.0
)

// LeftAnchorX is the x where the left stripe crosses mid height on a
// width-pixel frame. The right stripe mirrors it.
func LeftAnchorX(width int) float64 {
	return float64(width) * 100 / 640
}

// TwoLaneScene has a left and a right marking that cross the frame's middle
// row at LeftAnchorX and width-LeftAnchorX.
func TwoLaneScene(width, height int) RoadScene {
	ax, my := LeftAnchorX(width), float64(height)/2
	return RoadScene{
		Width:      width,
		Height:     height,
		Background: Asphalt,
		Stripes: []Stripe{
			StripeThrough(ax, my, LeftThetaDeg, 8, LaneWhite),
			StripeThrough(float64(width)-ax, my, RightThetaDeg, 8, LaneWhite),
		},
	}
}

// LeftOnlyScene keeps only the left marking of TwoLaneScene.
func LeftOnlyScene(width, height int) RoadScene {
	s := TwoLaneScene(width, height)
	s.Stripes = s.Stripes[:1]
	return s
}

// BlankScene is an empty road.
func BlankScene(width, height int) RoadScene {
	return RoadScene{Width: width, Height: height, Background: Asphalt}
}

// Render rasterizes the scene.
func (s RoadScene) Render() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	var rng *rand.Rand
	if s.Noise > 0 {
		rng = rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	}
	for y := range s.Height {
		for x := range s.Width {
			c := s.Background
			for _, st := range s.Stripes {
				if st.covers(float64(x), float64(y)) {
					c = st.Color
				}
			}
			if rng != nil {
				n := rng.NormFloat64() * s.Noise
				c.R, c.G, c.B = jitter(c.R, n), jitter(c.G, n), jitter(c.B, n)
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func jitter(v uint8, n float64) uint8 {
	f := math.Round(float64(v) + n)
	return uint8(math.Max(0, math.Min(255, f)))
}

// BGR returns the scene as a row-major blue-green-red buffer.
func (s RoadScene) BGR() []uint8 {
	return ToBGR(s.Render())
}

// ToBGR flattens any image into a blue-green-red buffer.
func ToBGR(img image.Image) []uint8 {
	b := img.Bounds()
	out := make([]uint8, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out = append(out, c.B, c.G, c.R)
		}
	}
	return out
}

// UniformBGR returns a width×height buffer with every channel set to (b, g, r).
func UniformBGR(width, height int, b, g, r uint8) []uint8 {
	out := make([]uint8, width*height*3)
	for i := 0; i < len(out); i += 3 {
		out[i], out[i+1], out[i+2] = b, g, r
	}
	return out
}

// SaveImage writes img as PNG, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))

	file, err := os.Create(path) //nolint:gosec // G304: test output path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage decodes the image at path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: test input path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}

// CompareImages reports whether the mean per-pixel RGBA distance, relative to
// the maximum possible, is within tolerance.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	b := img1.Bounds()
	if b != img2.Bounds() {
		return false
	}
	if b.Empty() {
		return true
	}

	var total float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x, y).RGBA()
			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)
			total += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
		}
	}

	avg := total / float64(b.Dx()*b.Dy())
	return avg/math.Sqrt(4*65535*65535) <= tolerance
}
