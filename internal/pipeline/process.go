package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
)

// ErrNotInitialized is returned when a pipeline is nil or closed.
var ErrNotInitialized = errors.New("pipeline not initialized")

// FrameResult is the detection result for one input plus where it came from.
// Segment coordinates refer to the processed frame (after any resize).
type FrameResult struct {
	Source         string `json:"source,omitempty"`
	OriginalWidth  int    `json:"original_width"`
	OriginalHeight int    `json:"original_height"`
	Resized        bool   `json:"resized"`
	lanes.Result
}

// ScaleToOriginal maps a point in processed-frame coordinates back onto the input image.
func (r *FrameResult) ScaleToOriginal(x, y float64) (float64, float64) {
	if !r.Resized || r.Width == 0 || r.Height == 0 {
		return x, y
	}
	return x * float64(r.OriginalWidth) / float64(r.Width), y * float64(r.OriginalHeight) / float64(r.Height)
}

func (p *Pipeline) ready() error {
	if p == nil || p.Detector == nil {
		return ErrNotInitialized
	}
	return nil
}

// ProcessImage detects lanes in a decoded image.
func (p *Pipeline) ProcessImage(img image.Image) (*FrameResult, error) {
	return p.ProcessImageContext(context.Background(), img)
}

// ProcessImageContext detects lanes in img, resizing first when configured.
func (p *Pipeline) ProcessImageContext(ctx context.Context, img image.Image) (*FrameResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	work := img
	resized := false
	if p.ResizeEnabled() {
		r, err := utils.ResizeExact(img, p.cfg.ResizeWidth, p.cfg.ResizeHeight)
		if err != nil {
			return nil, fmt.Errorf("resize: %w", err)
		}
		resized = r != img
		work = r
	}

	data, w, h := utils.ImageToBGR(work)
	res, err := p.detect(ctx, lanes.NewFrame(data, w, h))
	if err != nil {
		return nil, err
	}
	res.OriginalWidth, res.OriginalHeight, res.Resized = b.Dx(), b.Dy(), resized
	return res, nil
}

// ProcessFrame detects lanes in a raw BGR frame. No resizing is applied.
func (p *Pipeline) ProcessFrame(f lanes.Frame) (*FrameResult, error) {
	return p.ProcessFrameContext(context.Background(), f)
}

// ProcessFrameContext is ProcessFrame with cancellation.
func (p *Pipeline) ProcessFrameContext(ctx context.Context, f lanes.Frame) (*FrameResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	res, err := p.detect(ctx, f)
	if err != nil {
		return nil, err
	}
	res.OriginalWidth, res.OriginalHeight = f.Width, f.Height
	return res, nil
}

func (p *Pipeline) detect(ctx context.Context, f lanes.Frame) (*FrameResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := p.Detector.Detect(f)
	if err != nil {
		return nil, fmt.Errorf("detect lanes: %w", err)
	}
	return &FrameResult{Result: *res}, nil
}

// ProcessImages processes images sequentially, stopping at the first error.
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image) ([]*FrameResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	out := make([]*FrameResult, len(images))
	for i, img := range images {
		res, err := p.ProcessImageContext(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		out[i] = res
	}
	return out, nil
}
