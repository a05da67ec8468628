package device

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/rotatebatch/internal/rotate"
)

func testPattern(width, height int) *rotate.Image {
	img := rotate.NewImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, uint8((x*31+y*17+1)%251))
		}
	}
	return img
}

// rotateImage runs the full upload/rotate/download sequence on d.
func rotateImage(t *testing.T, d *CPUDevice, src *rotate.Image, angle float64, interp rotate.Interp) *rotate.Image {
	t.Helper()

	devSrc, err := d.Upload(src)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer d.Release(devSrc)

	outW, outH := rotate.ComputeBounds(src.Width, src.Height, angle)
	devDst, err := d.Alloc(outW, outH)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	defer d.Release(devDst)

	err = d.Rotate(
		devSrc, rotate.FullRegion(src.Width, src.Height),
		devDst, rotate.FullRegion(outW, outH),
		angle, rotate.Center(src.Width, src.Height), interp,
	)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	dst, err := d.Download(devDst)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	return dst
}

func imagesEqual(a, b *rotate.Image) bool {
	if a.Width != b.Width || a.Height != b.Height {
		return false
	}
	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			if a.At(x, y) != b.At(x, y) {
				return false
			}
		}
	}
	return true
}

func TestRotateIdentity(t *testing.T) {
	for _, interp := range []rotate.Interp{rotate.InterpNearest, rotate.InterpLinear} {
		t.Run(interp.String(), func(t *testing.T) {
			d := NewCPUDevice()
			src := testPattern(10, 7)
			dst := rotateImage(t, d, src, 0, interp)
			if !imagesEqual(src, dst) {
				t.Error("zero-angle rotation altered the image")
			}
		})
	}
}

func TestRotateQuarterTurnMapping(t *testing.T) {
	d := NewCPUDevice()
	src := rotate.NewImage(2, 2)
	src.Set(0, 0, 10)
	src.Set(1, 0, 20)
	src.Set(0, 1, 30)
	src.Set(1, 1, 40)

	dst := rotateImage(t, d, src, 90, rotate.InterpNearest)

	// Counter-clockwise: the first source row ends up as the right column.
	want := [][2]int{{0, 1}, {0, 0}, {1, 1}, {1, 0}}
	got := [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for i, dp := range got {
		sp := want[i]
		if dst.At(dp[0], dp[1]) != src.At(sp[0], sp[1]) {
			t.Errorf("dst(%d,%d) = %d, want src(%d,%d) = %d",
				dp[0], dp[1], dst.At(dp[0], dp[1]), sp[0], sp[1], src.At(sp[0], sp[1]))
		}
	}
}

func TestRotateQuarterTurnRoundTrip(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		angle         float64
	}{
		{"90 then back, odd dims", 5, 3, 90},
		{"90 then back, even dims", 4, 4, 90},
		{"180 then back, mixed dims", 4, 3, 180},
		{"270 then back", 7, 2, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, interp := range []rotate.Interp{rotate.InterpNearest, rotate.InterpLinear} {
				d := NewCPUDevice()
				src := testPattern(tt.width, tt.height)

				mid := rotateImage(t, d, src, tt.angle, interp)
				back := rotateImage(t, d, mid, -tt.angle, interp)

				if !imagesEqual(src, back) {
					t.Errorf("%s: quarter-turn round trip is not lossless", interp)
				}
			}
		})
	}
}

func TestRotateArbitraryAngleRoundTrip(t *testing.T) {
	const angle = 30.0
	d := NewCPUDevice()

	// A linear ramp: bilinear interpolation reproduces linear fields exactly,
	// so after rotating there and back only per-pass rounding error remains.
	field := func(px, py float64) float64 {
		return 3*(px-0.5) + 4*(py-0.5) + 10
	}
	src := rotate.NewImage(16, 12)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			src.Set(x, y, uint8(field(float64(x)+0.5, float64(y)+0.5)+0.5))
		}
	}

	mid := rotateImage(t, d, src, angle, rotate.InterpLinear)
	back := rotateImage(t, d, mid, -angle, rotate.InterpLinear)

	// The content stays centered through both passes, so a back pixel maps
	// to the source position offset by the difference of canvas centers.
	offX := float64(src.Width)/2 - float64(back.Width)/2
	offY := float64(src.Height)/2 - float64(back.Height)/2

	const margin = 3.0
	checked := 0
	for by := 0; by < back.Height; by++ {
		for bx := 0; bx < back.Width; bx++ {
			px := float64(bx) + 0.5 + offX
			py := float64(by) + 0.5 + offY
			if px < margin || py < margin ||
				px > float64(src.Width)-margin || py > float64(src.Height)-margin {
				continue
			}
			want := field(px, py)
			got := float64(back.At(bx, by))
			if math.Abs(got-want) > 2 {
				t.Errorf("back(%d,%d) = %g, want %g within 2", bx, by, got, want)
			}
			checked++
		}
	}
	if checked == 0 {
		t.Fatal("no interior pixels were checked")
	}
}

func TestRotateDiagonalBackground(t *testing.T) {
	d := NewCPUDevice()
	src := rotate.NewImage(4, 4)
	for i := range src.Pix {
		src.Pix[i] = 255
	}

	dst := rotateImage(t, d, src, 45, rotate.InterpNearest)
	if dst.Width != 6 || dst.Height != 6 {
		t.Fatalf("canvas is %dx%d, want 6x6", dst.Width, dst.Height)
	}

	// Corners fall outside the rotated square and keep the zero background.
	for _, p := range [][2]int{{0, 0}, {5, 0}, {0, 5}, {5, 5}} {
		if v := dst.At(p[0], p[1]); v != 0 {
			t.Errorf("corner (%d,%d) = %d, want background 0", p[0], p[1], v)
		}
	}
	// The center is covered by the source.
	if v := dst.At(3, 3); v != 255 {
		t.Errorf("center = %d, want 255", v)
	}
}

func TestRotateSourceRegionCrop(t *testing.T) {
	d := NewCPUDevice()
	src := testPattern(6, 6)

	devSrc, err := d.Upload(src)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	devDst, err := d.Alloc(2, 2)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	err = d.Rotate(
		devSrc, rotate.Region{X: 2, Y: 2, Width: 2, Height: 2},
		devDst, rotate.FullRegion(2, 2),
		0, rotate.Center(6, 6), rotate.InterpNearest,
	)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	dst, err := d.Download(devDst)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if dst.At(x, y) != src.At(x+2, y+2) {
				t.Errorf("dst(%d,%d) = %d, want src(%d,%d) = %d",
					x, y, dst.At(x, y), x+2, y+2, src.At(x+2, y+2))
			}
		}
	}
}

func TestRotateDestinationPlacement(t *testing.T) {
	d := NewCPUDevice()
	src := testPattern(2, 2)

	devSrc, err := d.Upload(src)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	devDst, err := d.Alloc(6, 6)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	err = d.Rotate(
		devSrc, rotate.FullRegion(2, 2),
		devDst, rotate.Region{X: 2, Y: 2, Width: 2, Height: 2},
		0, rotate.Center(2, 2), rotate.InterpNearest,
	)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	dst, err := d.Download(devDst)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			want := uint8(0)
			if x >= 2 && x < 4 && y >= 2 && y < 4 {
				want = src.At(x-2, y-2)
			}
			if dst.At(x, y) != want {
				t.Errorf("dst(%d,%d) = %d, want %d", x, y, dst.At(x, y), want)
			}
		}
	}
}

type foreignBuffer struct{}

func (foreignBuffer) Width() int  { return 1 }
func (foreignBuffer) Height() int { return 1 }
func (foreignBuffer) Pitch() int  { return 1 }

func TestRotateValidation(t *testing.T) {
	d := NewCPUDevice()
	src, err := d.Upload(testPattern(4, 4))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	dst, err := d.Alloc(4, 4)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	full := rotate.FullRegion(4, 4)
	center := rotate.Center(4, 4)

	tests := []struct {
		name string
		call func() error
	}{
		{"foreign source buffer", func() error {
			return d.Rotate(foreignBuffer{}, full, dst, full, 0, center, rotate.InterpNearest)
		}},
		{"foreign destination buffer", func() error {
			return d.Rotate(src, full, foreignBuffer{}, full, 0, center, rotate.InterpNearest)
		}},
		{"empty source region", func() error {
			return d.Rotate(src, rotate.Region{}, dst, full, 0, center, rotate.InterpNearest)
		}},
		{"source region out of bounds", func() error {
			return d.Rotate(src, rotate.Region{X: 2, Y: 2, Width: 4, Height: 4}, dst, full, 0, center, rotate.InterpNearest)
		}},
		{"non-finite angle", func() error {
			return d.Rotate(src, full, dst, full, math.NaN(), center, rotate.InterpNearest)
		}},
		{"unknown interpolation", func() error {
			return d.Rotate(src, full, dst, full, 0, center, rotate.Interp(99))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err == nil {
				t.Error("expected an error")
			}
		})
	}

	d.Release(src)
	if err := d.Rotate(src, full, dst, full, 0, center, rotate.InterpNearest); err == nil {
		t.Error("expected an error for a released source buffer")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	d := NewCPUDevice()
	buf, err := d.Alloc(8, 8)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	d.Release(buf)
	d.Release(buf)
	d.Release(nil)

	allocs, releases := d.Counters()
	if allocs != 1 || releases != 1 {
		t.Errorf("counters = %d/%d, want 1/1", allocs, releases)
	}
}

func TestBuffersBalanceAcrossRuns(t *testing.T) {
	d := NewCPUDevice()
	src := testPattern(16, 9)

	for i := 0; i < 5; i++ {
		rotateImage(t, d, src, 33.3, rotate.InterpLinear)
	}

	allocs, releases := d.Counters()
	if allocs != releases {
		t.Errorf("allocs = %d, releases = %d, want equal", allocs, releases)
	}
	if allocs != 10 {
		t.Errorf("allocs = %d, want 10 (two per run)", allocs)
	}
}

func TestAllocValidation(t *testing.T) {
	d := NewCPUDevice()

	if _, err := d.Alloc(0, 10); err == nil {
		t.Error("expected an error for zero width")
	}
	if _, err := d.Alloc(10, -1); err == nil {
		t.Error("expected an error for negative height")
	}
	if _, err := d.Alloc(1<<20, 1<<11); err == nil {
		t.Error("expected an error for an oversized buffer")
	}

	d.Close()
	if _, err := d.Alloc(4, 4); err == nil {
		t.Error("expected an error after Close")
	}
}

func TestUploadPaddedStride(t *testing.T) {
	d := NewCPUDevice()

	img := &rotate.Image{
		Width:  3,
		Height: 2,
		Stride: 8,
		Pix:    make([]uint8, 8*2),
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.Pix[y*img.Stride+x] = uint8(10*y + x)
		}
	}

	buf, err := d.Upload(img)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	out, err := d.Download(buf)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if out.At(x, y) != uint8(10*y+x) {
				t.Errorf("out(%d,%d) = %d, want %d", x, y, out.At(x, y), 10*y+x)
			}
		}
	}
}

func TestUploadValidation(t *testing.T) {
	d := NewCPUDevice()

	if _, err := d.Upload(nil); err == nil {
		t.Error("expected an error for a nil image")
	}
	short := &rotate.Image{Width: 4, Height: 4, Stride: 4, Pix: make([]uint8, 8)}
	if _, err := d.Upload(short); err == nil {
		t.Error("expected an error for a short pixel buffer")
	}
}

func TestBufferPitchAlignment(t *testing.T) {
	d := NewCPUDevice()
	buf, err := d.Alloc(100, 10)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if buf.Pitch()%pitchAlign != 0 {
		t.Errorf("pitch %d is not a multiple of %d", buf.Pitch(), pitchAlign)
	}
	if buf.Pitch() < buf.Width() {
		t.Errorf("pitch %d is smaller than width %d", buf.Pitch(), buf.Width())
	}
}

func TestOpenBackend(t *testing.T) {
	dev, cleanup, err := Open("cpu")
	if err != nil {
		t.Fatalf("Open(cpu) failed: %v", err)
	}
	defer cleanup()
	if dev.Name() != "cpu" {
		t.Errorf("Name = %q, want cpu", dev.Name())
	}

	if _, _, err := Open("bogus"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open(bogus) = %v, want ErrUnknownBackend", err)
	}
}

func benchmarkRotate(b *testing.B, interp rotate.Interp) {
	d := NewCPUDevice()
	src := testPattern(512, 512)

	devSrc, err := d.Upload(src)
	if err != nil {
		b.Fatalf("Upload failed: %v", err)
	}
	outW, outH := rotate.ComputeBounds(512, 512, 45)
	devDst, err := d.Alloc(outW, outH)
	if err != nil {
		b.Fatalf("Alloc failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := d.Rotate(
			devSrc, rotate.FullRegion(512, 512),
			devDst, rotate.FullRegion(outW, outH),
			45, rotate.Center(512, 512), interp,
		)
		if err != nil {
			b.Fatalf("Rotate failed: %v", err)
		}
	}
}

func BenchmarkRotateNearest(b *testing.B) { benchmarkRotate(b, rotate.InterpNearest) }
func BenchmarkRotateLinear(b *testing.B)  { benchmarkRotate(b, rotate.InterpLinear) }

func TestNormalizeBackend(t *testing.T) {
	tests := []struct {
		in   string
		want Backend
	}{
		{"", BackendCPU},
		{"cpu", BackendCPU},
		{"CPU", BackendCPU},
		{"gpu", BackendOpenCL},
		{"OpenCL", BackendOpenCL},
		{"cl", BackendOpenCL},
		{"tpu", Backend("tpu")},
	}
	for _, tt := range tests {
		if got := NormalizeBackend(tt.in); got != tt.want {
			t.Errorf("NormalizeBackend(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
