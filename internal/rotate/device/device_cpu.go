package device

import (
	"fmt"
	"math"

	"github.com/cwbudde/rotatebatch/internal/rotate"
)

// pitchAlign is the row alignment of CPU device buffers. A padded pitch
// mirrors accelerator allocations, so pitch handling stays honest even in
// the reference backend.
const pitchAlign = 64

// maxBufferPixels caps a single allocation at 1 GiB of samples.
const maxBufferPixels = 1 << 30

type hostBuffer struct {
	width, height, pitch int
	pix                  []uint8
	released             bool
}

func (b *hostBuffer) Width() int  { return b.width }
func (b *hostBuffer) Height() int { return b.height }
func (b *hostBuffer) Pitch() int  { return b.pitch }

// CPUDevice is the reference Device implementation. It executes the same
// rotate-and-place contract as the accelerator backend on host memory, so
// the pipeline can run and be tested without a physical device.
type CPUDevice struct {
	allocs   int
	releases int
	closed   bool
}

// NewCPUDevice creates a CPU reference device.
func NewCPUDevice() *CPUDevice {
	return &CPUDevice{}
}

// Name identifies the backend.
func (d *CPUDevice) Name() string {
	return string(BackendCPU)
}

// Alloc reserves a zero-filled buffer with an aligned pitch.
func (d *CPUDevice) Alloc(width, height int) (rotate.Buffer, error) {
	if d.closed {
		return nil, fmt.Errorf("device is closed")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid buffer size %dx%d", width, height)
	}

	pitch := (width + pitchAlign - 1) / pitchAlign * pitchAlign
	if pitch*height > maxBufferPixels {
		return nil, fmt.Errorf("buffer size %dx%d exceeds device memory", width, height)
	}

	d.allocs++
	return &hostBuffer{
		width:  width,
		height: height,
		pitch:  pitch,
		pix:    make([]uint8, pitch*height),
	}, nil
}

// Upload copies a host image into a newly allocated buffer.
func (d *CPUDevice) Upload(img *rotate.Image) (rotate.Buffer, error) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("invalid host image")
	}
	if len(img.Pix) < (img.Height-1)*img.Stride+img.Width {
		return nil, fmt.Errorf("host image buffer shorter than %dx%d with stride %d", img.Width, img.Height, img.Stride)
	}

	buf, err := d.Alloc(img.Width, img.Height)
	if err != nil {
		return nil, err
	}
	b := buf.(*hostBuffer)
	for y := 0; y < img.Height; y++ {
		copy(b.pix[y*b.pitch:y*b.pitch+img.Width], img.Pix[y*img.Stride:y*img.Stride+img.Width])
	}
	return b, nil
}

// Download copies a buffer back into a newly allocated host image.
func (d *CPUDevice) Download(buf rotate.Buffer) (*rotate.Image, error) {
	b, err := d.own(buf)
	if err != nil {
		return nil, err
	}

	img := rotate.NewImage(b.width, b.height)
	for y := 0; y < b.height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+b.width], b.pix[y*b.pitch:y*b.pitch+b.width])
	}
	return img, nil
}

// Release frees a buffer. Releasing nil or an already released buffer is a
// no-op, so callers can release unconditionally while unwinding.
func (d *CPUDevice) Release(buf rotate.Buffer) {
	b, ok := buf.(*hostBuffer)
	if !ok || b == nil || b.released {
		return
	}
	b.released = true
	b.pix = nil
	d.releases++
}

// Rotate resamples srcROI rotated by angleDeg about center into dstROI.
// Destination pixels whose pre-image falls outside srcROI are left at their
// allocation-time zero value.
func (d *CPUDevice) Rotate(src rotate.Buffer, srcROI rotate.Region, dst rotate.Buffer, dstROI rotate.Region, angleDeg float64, center rotate.Point, interp rotate.Interp) error {
	sb, err := d.own(src)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	db, err := d.own(dst)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if srcROI.Empty() || dstROI.Empty() {
		return fmt.Errorf("empty region")
	}
	if srcROI.X < 0 || srcROI.Y < 0 || srcROI.X+srcROI.Width > sb.width || srcROI.Y+srcROI.Height > sb.height {
		return fmt.Errorf("source region %+v out of bounds for %dx%d buffer", srcROI, sb.width, sb.height)
	}
	if math.IsNaN(angleDeg) || math.IsInf(angleDeg, 0) {
		return fmt.Errorf("non-finite angle")
	}
	if interp != rotate.InterpNearest && interp != rotate.InterpLinear {
		return fmt.Errorf("unsupported interpolation mode %v", interp)
	}

	sin, cos := rotate.SinCosDeg(angleDeg)

	// Translation that lands the rotated source-region center on the
	// destination-region center.
	shiftX := float64(dstROI.X) + float64(dstROI.Width)/2 - (float64(srcROI.X) + float64(srcROI.Width)/2)
	shiftY := float64(dstROI.Y) + float64(dstROI.Height)/2 - (float64(srcROI.Y) + float64(srcROI.Height)/2)

	// Destination rows actually written: dstROI clipped to the buffer.
	x0, y0 := max(dstROI.X, 0), max(dstROI.Y, 0)
	x1, y1 := min(dstROI.X+dstROI.Width, db.width), min(dstROI.Y+dstROI.Height, db.height)

	sxMin, syMin := srcROI.X, srcROI.Y
	sxMax, syMax := srcROI.X+srcROI.Width, srcROI.Y+srcROI.Height

	for dy := y0; dy < y1; dy++ {
		row := db.pix[dy*db.pitch : dy*db.pitch+db.width]
		for dx := x0; dx < x1; dx++ {
			// Pull the destination pixel center back into source space.
			rx := float64(dx) + 0.5 - shiftX - center.X
			ry := float64(dy) + 0.5 - shiftY - center.Y
			sx := cos*rx + sin*ry + center.X
			sy := -sin*rx + cos*ry + center.Y

			// Nearest sample index; also the in-bounds gate for linear.
			ix := int(math.Floor(sx))
			iy := int(math.Floor(sy))
			if ix < sxMin || iy < syMin || ix >= sxMax || iy >= syMax {
				continue
			}

			if interp == rotate.InterpNearest {
				row[dx] = sb.pix[iy*sb.pitch+ix]
				continue
			}

			row[dx] = sampleLinear(sb, sx, sy, sxMin, syMin, sxMax, syMax)
		}
	}

	return nil
}

// sampleLinear blends the four samples around the continuous position
// (sx, sy), clamping taps at the region edges.
func sampleLinear(b *hostBuffer, sx, sy float64, xMin, yMin, xMax, yMax int) uint8 {
	fx := sx - 0.5
	fy := sy - 0.5

	x0f := math.Floor(fx)
	y0f := math.Floor(fy)
	wx := fx - x0f
	wy := fy - y0f

	ax := clampInt(int(x0f), xMin, xMax-1)
	bx := clampInt(int(x0f)+1, xMin, xMax-1)
	ay := clampInt(int(y0f), yMin, yMax-1)
	by := clampInt(int(y0f)+1, yMin, yMax-1)

	p00 := float64(b.pix[ay*b.pitch+ax])
	p01 := float64(b.pix[ay*b.pitch+bx])
	p10 := float64(b.pix[by*b.pitch+ax])
	p11 := float64(b.pix[by*b.pitch+bx])

	top := p00 + (p01-p00)*wx
	bottom := p10 + (p11-p10)*wx
	return uint8(top + (bottom-top)*wy + 0.5)
}

// Close marks the device closed. Outstanding buffers stay valid for release.
func (d *CPUDevice) Close() {
	d.closed = true
}

// Counters returns the lifetime allocate and release counts, used to verify
// that buffers never leak across batch iterations.
func (d *CPUDevice) Counters() (allocs, releases int) {
	return d.allocs, d.releases
}

func (d *CPUDevice) own(buf rotate.Buffer) (*hostBuffer, error) {
	b, ok := buf.(*hostBuffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("buffer does not belong to the cpu backend")
	}
	if b.released {
		return nil, fmt.Errorf("buffer already released")
	}
	return b, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
