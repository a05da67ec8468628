//go:build !gpu

package device

import (
	"fmt"

	"github.com/cwbudde/rotatebatch/internal/rotate"
)

// newOpenCLDevice reports the backend unavailable in non-GPU builds.
func newOpenCLDevice() (rotate.Device, func(), error) {
	return nil, noopCleanup, fmt.Errorf("%w: build without GPU tag", ErrBackendUnavailable)
}
