package imageio

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/rotatebatch/internal/rotate"
)

func gradient(width, height int) *rotate.Image {
	img := rotate.NewImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, uint8((x*7+y*11)%256))
		}
	}
	return img
}

func TestFileCodecRoundTrip(t *testing.T) {
	// Lossless containers only; JPEG would not round-trip bit-exactly.
	exts := []string{".pgm", ".png", ".tiff", ".bmp"}

	codec := FileCodec{}
	src := gradient(17, 9)

	for _, ext := range exts {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "img"+ext)
			if err := codec.Save(path, src); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			out, err := codec.Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if out.Width != src.Width || out.Height != src.Height {
				t.Fatalf("loaded %dx%d, want %dx%d", out.Width, out.Height, src.Width, src.Height)
			}
			if !bytes.Equal(out.Pix, src.Pix) {
				t.Error("round trip altered pixel data")
			}
		})
	}
}

func TestFileCodecJPEG(t *testing.T) {
	codec := FileCodec{}
	src := gradient(32, 32)
	path := filepath.Join(t.TempDir(), "img.jpg")

	if err := codec.Save(path, src); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	out, err := codec.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.Width != 32 || out.Height != 32 {
		t.Errorf("loaded %dx%d, want 32x32", out.Width, out.Height)
	}
}

func TestFileCodecUnsupported(t *testing.T) {
	codec := FileCodec{}
	dir := t.TempDir()

	path := filepath.Join(dir, "img.xyz")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := codec.Load(path); err == nil {
		t.Error("expected an error for an unsupported load format")
	}

	out := filepath.Join(dir, "out.xyz")
	if err := codec.Save(out, gradient(2, 2)); err == nil {
		t.Error("expected an error for an unsupported save format")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("failed save left a file behind")
	}
}

func TestFileCodecMissingFile(t *testing.T) {
	if _, err := (FileCodec{}).Load(filepath.Join(t.TempDir(), "nope.pgm")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestToGrayConvertsColor(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 2, 1))
	rgba.Pix = []uint8{
		255, 255, 255, 255, // white
		0, 0, 0, 255, // black
	}

	out := ToGray(rgba)
	if out.At(0, 0) != 255 || out.At(1, 0) != 0 {
		t.Errorf("converted samples = [%d %d], want [255 0]", out.At(0, 0), out.At(1, 0))
	}
}

func TestToGraySubimage(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range g.Pix {
		g.Pix[i] = uint8(i)
	}
	sub := g.SubImage(image.Rect(1, 1, 3, 3)).(*image.Gray)

	out := ToGray(sub)
	if out.Width != 2 || out.Height != 2 {
		t.Fatalf("converted %dx%d, want 2x2", out.Width, out.Height)
	}
	want := []uint8{5, 6, 9, 10}
	if !bytes.Equal(out.Pix, want) {
		t.Errorf("pix = %v, want %v", out.Pix, want)
	}
}

func TestFromGrayPaddedStride(t *testing.T) {
	img := &rotate.Image{Width: 2, Height: 2, Stride: 5, Pix: make([]uint8, 10)}
	img.Set(0, 0, 1)
	img.Set(1, 0, 2)
	img.Set(0, 1, 3)
	img.Set(1, 1, 4)

	g := FromGray(img)
	if g.Stride != 2 {
		t.Errorf("stride = %d, want tight 2", g.Stride)
	}
	if !bytes.Equal(g.Pix, []uint8{1, 2, 3, 4}) {
		t.Errorf("pix = %v, want [1 2 3 4]", g.Pix)
	}
}
