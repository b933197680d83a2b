// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package drbm

import "github.com/pkg/errors"

// Errors returned by the package. Callers should test with errors.Is; every
// returned error wraps one of these with context.
var (
	// ErrInvalidArgument reports a malformed config, parameter or label.
	ErrInvalidArgument = errors.New("drbm: invalid argument")

	// ErrShapeMismatch reports samples whose width differs from the number
	// of visible units.
	ErrShapeMismatch = errors.New("drbm: shape mismatch")

	// ErrDeviceUnavailable reports that accelerated placement was requested
	// on a machine without a usable WebGPU device.
	ErrDeviceUnavailable = errors.New("drbm: accelerated device unavailable")

	// ErrNumerical reports a zero or non-finite normalizer or loss.
	ErrNumerical = errors.New("drbm: numerical error")
)
