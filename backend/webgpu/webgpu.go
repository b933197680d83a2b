// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the accelerated backend selected by
// drbm.PlacementAccelerated.
//
// Matrix multiplication and softplus run as WebGPU compute shaders; every
// other operation runs on the host. The native bindings are only available on
// Windows builds; elsewhere New returns ErrUnavailable.
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    cfg.Placement = drbm.PlacementAccelerated
//	}
//	model, err := drbm.New(cfg)
package webgpu

import (
	internalwebgpu "github.com/born-ml/drbm/internal/backend/webgpu"
	"github.com/born-ml/drbm/tensor"
)

// Backend represents the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// ErrUnavailable is returned by New when no adapter or native library is present.
var ErrUnavailable = internalwebgpu.ErrUnavailable

// New creates a new WebGPU backend. Call Release when done to free GPU
// resources.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable reports whether a compatible adapter can be initialized.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
