// Package imageio loads and saves 8-bit single-channel images. PGM and PPM
// are decoded natively; PNG, JPEG, TIFF and BMP go through the image
// registry. Color inputs are converted to grayscale on load.
package imageio

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	_ "image/gif"

	"github.com/cwbudde/rotatebatch/internal/rotate"
)

// jpegQuality is used when saving .jpg outputs.
const jpegQuality = 90

// FileCodec implements rotate.Codec against the local filesystem, choosing
// the container format by file extension.
type FileCodec struct{}

// Load reads and decodes the image at path into a grayscale host image.
func (FileCodec) Load(path string) (*rotate.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pgm", ".ppm":
		return DecodePNM(bufio.NewReader(f))
	case ".png", ".jpg", ".jpeg", ".gif":
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, err
		}
		return ToGray(img), nil
	case ".tif", ".tiff":
		img, err := tiff.Decode(f)
		if err != nil {
			return nil, err
		}
		return ToGray(img), nil
	case ".bmp":
		img, err := bmp.Decode(f)
		if err != nil {
			return nil, err
		}
		return ToGray(img), nil
	default:
		return nil, fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}
}

// Save encodes img into the format implied by path's extension. The file is
// removed again if encoding fails partway.
func (FileCodec) Save(path string, img *rotate.Image) error {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("invalid image")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	err = encodeTo(f, path, img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

func encodeTo(f *os.File, path string, img *rotate.Image) error {
	w := bufio.NewWriter(f)
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pgm":
		err = EncodePGM(w, img)
	case ".ppm":
		err = EncodePPM(w, img)
	case ".png":
		err = png.Encode(w, FromGray(img))
	case ".jpg", ".jpeg":
		err = jpeg.Encode(w, FromGray(img), &jpeg.Options{Quality: jpegQuality})
	case ".tif", ".tiff":
		err = tiff.Encode(w, FromGray(img), nil)
	case ".bmp":
		err = bmp.Encode(w, FromGray(img))
	default:
		return fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

// ToGray converts any decoded image into a tight-stride grayscale buffer.
func ToGray(src image.Image) *rotate.Image {
	bounds := src.Bounds()
	out := rotate.NewImage(bounds.Dx(), bounds.Dy())

	if g, ok := src.(*image.Gray); ok {
		for y := 0; y < out.Height; y++ {
			srcRow := g.Pix[(y+bounds.Min.Y-g.Rect.Min.Y)*g.Stride+(bounds.Min.X-g.Rect.Min.X):]
			copy(out.Pix[y*out.Stride:y*out.Stride+out.Width], srcRow[:out.Width])
		}
		return out
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			g := color.GrayModel.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			out.Pix[y*out.Stride+x] = g.Y
		}
	}
	return out
}

// FromGray wraps a host image as an image.Gray for the stdlib encoders.
func FromGray(img *rotate.Image) *image.Gray {
	if img.Stride == img.Width {
		return &image.Gray{
			Pix:    img.Pix,
			Stride: img.Stride,
			Rect:   image.Rect(0, 0, img.Width, img.Height),
		}
	}

	g := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		copy(g.Pix[y*g.Stride:y*g.Stride+img.Width], img.Pix[y*img.Stride:y*img.Stride+img.Width])
	}
	return g
}
