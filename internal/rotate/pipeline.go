package rotate

import (
	"fmt"
	"log/slog"
)

// Codec loads and saves host images. The CLI injects the real file codecs;
// tests substitute in-memory fakes.
type Codec interface {
	Load(path string) (*Image, error)
	Save(path string, img *Image) error
}

// Pipeline rotates one image at a time on a Device: load, upload, compute
// the output canvas, rotate into it, download, save. Failures are isolated
// to the single image and reported through the error taxonomy; both device
// buffers are released on every exit path.
type Pipeline struct {
	Device Device
	Codec  Codec
	Interp Interp
}

// NewPipeline creates a pipeline with linear interpolation.
func NewPipeline(dev Device, codec Codec) *Pipeline {
	return &Pipeline{Device: dev, Codec: codec, Interp: InterpLinear}
}

// Process rotates the image at inputPath by angle degrees and writes the
// result to outputPath. A nil return means the output file was written; any
// stage failure yields an error wrapping the stage's sentinel. The output is
// only written after a fully successful transform, so a failed run never
// leaves a partial file behind.
func (p *Pipeline) Process(inputPath, outputPath string, angle float64) error {
	src, err := p.Codec.Load(inputPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLoad, inputPath, err)
	}
	if src.Width <= 0 || src.Height <= 0 {
		return fmt.Errorf("%w: %s: empty image %dx%d", ErrLoad, inputPath, src.Width, src.Height)
	}

	devSrc, err := p.Device.Upload(src)
	if err != nil {
		return fmt.Errorf("%w: upload: %v", ErrTransfer, err)
	}
	defer p.Device.Release(devSrc)

	outW, outH := ComputeBounds(src.Width, src.Height, angle)

	devDst, err := p.Device.Alloc(outW, outH)
	if err != nil {
		return fmt.Errorf("%w: %dx%d: %v", ErrAlloc, outW, outH, err)
	}
	defer p.Device.Release(devDst)

	err = p.Device.Rotate(
		devSrc, FullRegion(src.Width, src.Height),
		devDst, FullRegion(outW, outH),
		angle, Center(src.Width, src.Height), p.Interp,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRotation, err)
	}

	dst, err := p.Device.Download(devDst)
	if err != nil {
		return fmt.Errorf("%w: download: %v", ErrTransfer, err)
	}

	if err := p.Codec.Save(outputPath, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSave, outputPath, err)
	}

	slog.Debug("Image processed",
		"input", inputPath,
		"output", outputPath,
		"src", fmt.Sprintf("%dx%d", src.Width, src.Height),
		"dst", fmt.Sprintf("%dx%d", outW, outH),
	)
	return nil
}
