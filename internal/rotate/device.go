package rotate

// Buffer is a device-resident rectangular sample buffer. The concrete type
// is owned by the backend that allocated it; callers only see its geometry.
// Pitch is the row distance in bytes and is at least Width.
type Buffer interface {
	Width() int
	Height() int
	Pitch() int
}

// Device is the accelerator capability consumed by the pipeline. A Device is
// opened once per process run and drives all buffer and kernel operations.
// Calls block until the device-side work has completed.
//
// Every Buffer obtained from Alloc or Upload must be handed back to Release
// exactly once. Release is idempotent-safe: releasing nil or an already
// released buffer is a no-op, so it can run unconditionally during error
// unwinding.
type Device interface {
	// Name identifies the backend for logs and summaries.
	Name() string

	// Alloc reserves a zero-filled device buffer for width x height samples.
	Alloc(width, height int) (Buffer, error)

	// Upload copies a host image into a newly allocated device buffer.
	Upload(img *Image) (Buffer, error)

	// Download copies a device buffer back into a newly allocated host image.
	Download(buf Buffer) (*Image, error)

	// Release frees a device buffer.
	Release(buf Buffer)

	// Rotate writes the source region rotated by angleDeg degrees about
	// center into the destination region, resampling with interp. Pixels in
	// dst outside dstROI, and dstROI pixels whose pre-image falls outside
	// srcROI, keep their prior (allocation-time zero) value.
	Rotate(src Buffer, srcROI Region, dst Buffer, dstROI Region, angleDeg float64, center Point, interp Interp) error

	// Close tears down the device context. Buffers must not be used after.
	Close()
}
