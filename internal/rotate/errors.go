package rotate

import "errors"

// Image-local errors. Each pipeline stage wraps its failure in one of these
// so the batch runner can report which stage failed; none of them aborts the
// batch.
var (
	// ErrLoad indicates the source image could not be read or decoded.
	ErrLoad = errors.New("image load failed")
	// ErrAlloc indicates device memory could not be allocated.
	ErrAlloc = errors.New("device allocation failed")
	// ErrTransfer indicates a host/device copy failed.
	ErrTransfer = errors.New("device transfer failed")
	// ErrRotation indicates the rotate kernel reported a failure.
	ErrRotation = errors.New("rotation failed")
	// ErrSave indicates the output image could not be encoded or written.
	ErrSave = errors.New("image save failed")
)

// Batch-fatal errors. These terminate the run before any per-image work.
var (
	// ErrDeviceUnavailable indicates the requested backend cannot be opened.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrNoInputFiles indicates discovery matched no input images.
	ErrNoInputFiles = errors.New("no input files found")
)

// Stage names the pipeline stage a Process error belongs to, or "unknown"
// for errors outside the taxonomy.
func Stage(err error) string {
	switch {
	case errors.Is(err, ErrLoad):
		return "load"
	case errors.Is(err, ErrAlloc):
		return "allocate"
	case errors.Is(err, ErrTransfer):
		return "transfer"
	case errors.Is(err, ErrRotation):
		return "rotate"
	case errors.Is(err, ErrSave):
		return "save"
	default:
		return "unknown"
	}
}
