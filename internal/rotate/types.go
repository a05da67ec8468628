package rotate

import "fmt"

// Image is a host-resident rectangular grid of 8-bit samples.
// Stride is the distance in bytes between the starts of consecutive rows
// and may exceed Width when the buffer carries alignment padding.
type Image struct {
	Width  int
	Height int
	Stride int
	Pix    []uint8
}

// NewImage allocates a zero-filled host image with a tight stride.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Stride: width,
		Pix:    make([]uint8, width*height),
	}
}

// At returns the sample at (x, y). Callers must stay in bounds.
func (im *Image) At(x, y int) uint8 {
	return im.Pix[y*im.Stride+x]
}

// Set writes the sample at (x, y). Callers must stay in bounds.
func (im *Image) Set(x, y int, v uint8) {
	im.Pix[y*im.Stride+x] = v
}

// Region is an axis-aligned rectangle used both as a source region of
// interest and as a destination placement rectangle.
type Region struct {
	X, Y          int
	Width, Height int
}

// FullRegion covers an entire width x height buffer.
func FullRegion(width, height int) Region {
	return Region{Width: width, Height: height}
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Point is a position in continuous image coordinates. Pixel (x, y) has its
// center at (x+0.5, y+0.5).
type Point struct {
	X, Y float64
}

// Interp selects the resampling rule used by the rotate kernel.
type Interp int

const (
	// InterpNearest picks the closest source sample.
	InterpNearest Interp = iota
	// InterpLinear blends the four surrounding source samples.
	InterpLinear
)

func (i Interp) String() string {
	switch i {
	case InterpNearest:
		return "nearest"
	case InterpLinear:
		return "linear"
	default:
		return fmt.Sprintf("interp(%d)", int(i))
	}
}

// ParseInterp maps a user-supplied mode name to an Interp value.
func ParseInterp(name string) (Interp, error) {
	switch name {
	case "", "linear":
		return InterpLinear, nil
	case "nearest", "nn":
		return InterpNearest, nil
	default:
		return 0, fmt.Errorf("unknown interpolation mode: %s", name)
	}
}

// RotationRequest carries the per-image rotation parameters. The angle is
// unrestricted: it may be negative, exceed 360 degrees, or be any real value.
type RotationRequest struct {
	AngleDegrees float64
	Interp       Interp
	Center       Point
}
