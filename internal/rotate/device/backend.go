package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/rotatebatch/internal/rotate"
)

// Backend identifies a Device implementation.
type Backend string

const (
	BackendCPU    Backend = "cpu"
	BackendOpenCL Backend = "opencl"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("unknown device backend")
	// ErrBackendUnavailable indicates the backend is not available in this build.
	ErrBackendUnavailable = errors.New("device backend unavailable")
)

var noopCleanup = func() {}

// NormalizeBackend maps arbitrary user input to a canonical backend identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu":
		return BackendCPU
	case "gpu", "opencl", "cl":
		return BackendOpenCL
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the list of backends understood by the factory.
func SupportedBackends() []Backend {
	return []Backend{BackendCPU, BackendOpenCL}
}

// Open constructs the requested device and returns a cleanup hook that tears
// down its context. Open is called once per process run, before any
// per-image work; failure here is batch-fatal.
func Open(name string) (rotate.Device, func(), error) {
	switch NormalizeBackend(name) {
	case BackendCPU:
		dev := NewCPUDevice()
		return dev, dev.Close, nil
	case BackendOpenCL:
		return newOpenCLDevice()
	default:
		return nil, noopCleanup, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
