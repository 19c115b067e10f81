package lanes

// Luma weights scaled by 1000 so the conversion stays in integer arithmetic.
const (
	lumaR = 299
	lumaG = 587
	lumaB = 114
)

// ToGray converts a BGR frame to intensity with 0.299R + 0.587G + 0.114B,
// rounded to the nearest integer. A uniform frame of value V maps to V.
func ToGray(f Frame) *GrayImage {
	out := NewGrayImage(f.Width, f.Height)
	src := f.Data
	for i := range out.Pix {
		j := i * Channels
		b, g, r := uint32(src[j]), uint32(src[j+1]), uint32(src[j+2])
		v := (lumaR*r + lumaG*g + lumaB*b + 500) / 1000
		if v > 255 {
			v = 255
		}
		out.Pix[i] = uint8(v)
	}
	return out
}
