package imageio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/cwbudde/rotatebatch/internal/rotate"
)

// DecodePNM reads a PGM (P2/P5) or PPM (P6) stream into a grayscale host
// image. Color PPM samples are reduced with the usual luma weights. Only
// 8-bit files (maxval <= 255) are supported.
func DecodePNM(r *bufio.Reader) (*rotate.Image, error) {
	magic, err := readPNMToken(r)
	if err != nil {
		return nil, fmt.Errorf("pnm: missing magic: %w", err)
	}
	if magic != "P2" && magic != "P5" && magic != "P6" {
		return nil, fmt.Errorf("pnm: unsupported magic %q", magic)
	}

	width, err := readPNMInt(r)
	if err != nil {
		return nil, fmt.Errorf("pnm: bad width: %w", err)
	}
	height, err := readPNMInt(r)
	if err != nil {
		return nil, fmt.Errorf("pnm: bad height: %w", err)
	}
	maxval, err := readPNMInt(r)
	if err != nil {
		return nil, fmt.Errorf("pnm: bad maxval: %w", err)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pnm: invalid size %dx%d", width, height)
	}
	if maxval <= 0 || maxval > 255 {
		return nil, fmt.Errorf("pnm: unsupported maxval %d", maxval)
	}

	img := rotate.NewImage(width, height)

	switch magic {
	case "P2":
		for i := range img.Pix {
			v, err := readPNMInt(r)
			if err != nil {
				return nil, fmt.Errorf("pnm: truncated sample data: %w", err)
			}
			if v < 0 || v > maxval {
				return nil, fmt.Errorf("pnm: sample %d out of range", v)
			}
			img.Pix[i] = scaleSample(v, maxval)
		}
	case "P5":
		if _, err := io.ReadFull(r, img.Pix); err != nil {
			return nil, fmt.Errorf("pnm: truncated sample data: %w", err)
		}
		if maxval != 255 {
			for i, v := range img.Pix {
				img.Pix[i] = scaleSample(int(v), maxval)
			}
		}
	case "P6":
		row := make([]uint8, 3*width)
		for y := 0; y < height; y++ {
			if _, err := io.ReadFull(r, row); err != nil {
				return nil, fmt.Errorf("pnm: truncated sample data: %w", err)
			}
			for x := 0; x < width; x++ {
				r8 := int(scaleSample(int(row[3*x]), maxval))
				g8 := int(scaleSample(int(row[3*x+1]), maxval))
				b8 := int(scaleSample(int(row[3*x+2]), maxval))
				img.Pix[y*img.Stride+x] = uint8((299*r8 + 587*g8 + 114*b8 + 500) / 1000)
			}
		}
	}

	return img, nil
}

// EncodePGM writes img as a binary PGM (P5) stream.
func EncodePGM(w io.Writer, img *rotate.Image) error {
	if _, err := fmt.Fprintf(w, "P5\n%d %d\n255\n", img.Width, img.Height); err != nil {
		return err
	}
	for y := 0; y < img.Height; y++ {
		if _, err := w.Write(img.Pix[y*img.Stride : y*img.Stride+img.Width]); err != nil {
			return err
		}
	}
	return nil
}

// EncodePPM writes img as a binary PPM (P6) stream with the gray value
// replicated across the three channels.
func EncodePPM(w io.Writer, img *rotate.Image) error {
	if _, err := fmt.Fprintf(w, "P6\n%d %d\n255\n", img.Width, img.Height); err != nil {
		return err
	}
	row := make([]uint8, 3*img.Width)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := img.Pix[y*img.Stride+x]
			row[3*x], row[3*x+1], row[3*x+2] = v, v, v
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func scaleSample(v, maxval int) uint8 {
	if maxval == 255 {
		return uint8(v)
	}
	return uint8((v*255 + maxval/2) / maxval)
}

// readPNMToken returns the next whitespace-delimited token, skipping
// '#' comments that run to end of line.
func readPNMToken(r *bufio.Reader) (string, error) {
	var tok []byte
	inComment := false
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(tok) > 0 {
				return string(tok), nil
			}
			return "", err
		}

		switch {
		case inComment:
			if b == '\n' {
				inComment = false
			}
		case b == '#':
			if len(tok) > 0 {
				return string(tok), nil
			}
			inComment = true
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}

func readPNMInt(r *bufio.Reader) (int, error) {
	tok, err := readPNMToken(r)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(tok)
}
