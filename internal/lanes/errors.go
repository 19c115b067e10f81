package lanes

import (
	"errors"
	"fmt"
)

// ErrInvalidDimensions is wrapped by every DimensionError.
var ErrInvalidDimensions = errors.New("invalid frame dimensions")

// DimensionError describes a frame the pipeline refuses to process.
type DimensionError struct {
	Height   int
	Width    int
	Channels int
	Length   int
	Reason   string
}

func (e *DimensionError) Error() string {
	if e.Length > 0 {
		return fmt.Sprintf("%v: %dx%dx%d with %d bytes: %s",
			ErrInvalidDimensions, e.Height, e.Width, e.Channels, e.Length, e.Reason)
	}
	return fmt.Sprintf("%v: %dx%dx%d: %s", ErrInvalidDimensions, e.Height, e.Width, e.Channels, e.Reason)
}

func (e *DimensionError) Unwrap() error { return ErrInvalidDimensions }

// StageError reports a failure attributed to one pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("lane detection %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
