// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go backend every DRBM uses for local
// placement.
//
// # Overview
//
//   - Pure Go implementation (no CGO)
//   - gonum BLAS for float32 and float64 matrix multiplication
//   - NumPy-compatible broadcasting
//   - Numerically stable sigmoid and softplus
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// is isolated and does not share mutable state.
package cpu
