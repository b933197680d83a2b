// Package webgpu implements the accelerated backend.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// Matrix multiplication and softplus, the two kernels that dominate the
// class posterior, run as WGSL compute shaders. Every other operation is
// delegated to the embedded CPU backend, so tensors stay in host memory and
// are tagged with the WebGPU device.
//
// The native bindings are only wired on Windows builds; elsewhere New returns
// ErrUnavailable.
package webgpu

import (
	"github.com/pkg/errors"
)

// ErrUnavailable is returned when no WebGPU adapter or native library is present.
var ErrUnavailable = errors.New("webgpu: not available")

// Backend name reported by Name.
const backendName = "WebGPU"

// Largest 1-D dispatch allowed by WebGPU.
const maxWorkgroups = 65535
