//go:build !windows

package webgpu

import (
	"github.com/born-ml/drbm/internal/backend/cpu"
)

// Backend is a placeholder on platforms without WebGPU bindings. New never
// returns one.
type Backend struct {
	*cpu.CPUBackend
}

// New always fails with ErrUnavailable.
func New() (*Backend, error) {
	return nil, ErrUnavailable
}

// IsAvailable reports whether a WebGPU device can be created.
func IsAvailable() bool {
	return false
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return backendName
}

// Release is a no-op.
func (b *Backend) Release() {}
