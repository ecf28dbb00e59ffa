package refine

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidStackShape is returned when a stack has no frames, when frames
// differ in size, or when a frame's pixel buffer does not match its size.
var ErrInvalidStackShape = errors.New("invalid stack shape")

// Frame is one raw grayscale image of the time sequence.
//
// Pix holds Width*Height intensities in row-major order. A Frame must not be
// modified after it has been handed to the pipeline.
type Frame struct {
	Index  int
	Width  int
	Height int
	Pix    []int
}

// NewFrame validates the buffer size and returns a Frame.
func NewFrame(index, width, height int, pix []int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: frame %d has size %dx%d", ErrInvalidStackShape, index, width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("%w: frame %d has %d pixels, want %d",
			ErrInvalidStackShape, index, len(pix), width*height)
	}
	return &Frame{Index: index, Width: width, Height: height, Pix: pix}, nil
}

// At returns the raw intensity at (x, y). The caller must stay in bounds.
func (f *Frame) At(x, y int) int {
	return f.Pix[y*f.Width+x]
}

// IntensityRange is the minimum and maximum raw intensity of a whole stack.
type IntensityRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// ValidateStack checks that frames is non-empty and that every frame shares
// the dimensions of the first one. Frame indexes must equal their position.
func ValidateStack(frames []*Frame) error {
	if len(frames) == 0 {
		return fmt.Errorf("%w: no frames", ErrInvalidStackShape)
	}
	w, h := frames[0].Width, frames[0].Height
	for i, f := range frames {
		if f == nil {
			return fmt.Errorf("%w: frame %d is nil", ErrInvalidStackShape, i)
		}
		if f.Width != w || f.Height != h {
			return fmt.Errorf("%w: frame %d is %dx%d, frame 0 is %dx%d",
				ErrInvalidStackShape, i, f.Width, f.Height, w, h)
		}
		if len(f.Pix) != w*h {
			return fmt.Errorf("%w: frame %d has %d pixels, want %d",
				ErrInvalidStackShape, i, len(f.Pix), w*h)
		}
		if f.Index != i {
			return fmt.Errorf("%w: frame at position %d has index %d", ErrInvalidStackShape, i, f.Index)
		}
	}
	return nil
}

// StackRange validates the stack and returns its global intensity range.
// This is the first pass of a build; the result is read-only afterwards.
func StackRange(frames []*Frame) (IntensityRange, error) {
	if err := ValidateStack(frames); err != nil {
		return IntensityRange{}, err
	}
	mins := make([]float64, len(frames))
	maxs := make([]float64, len(frames))
	for i, f := range frames {
		lo, hi := f.Pix[0], f.Pix[0]
		for _, v := range f.Pix[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		mins[i] = float64(lo)
		maxs[i] = float64(hi)
	}
	return IntensityRange{Min: floats.Min(mins), Max: floats.Max(maxs)}, nil
}
