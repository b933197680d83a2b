// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand/v2"

	"github.com/born-ml/drbm/internal/tensor"
)

// DType is a constraint for tensor element types: float32, float64, int32.
type DType = tensor.DType

// DataType represents the runtime element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
)

// Device represents where a tensor's computation runs.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	WebGPU Device = tensor.WebGPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// RawTensor is the untyped, contiguous row-major storage behind a Tensor.
type RawTensor = tensor.RawTensor

// Backend defines the operations a compute backend implements. Backends panic
// on programmer errors such as shape mismatches.
//
// Implementations:
//   - backend/cpu: pure Go with gonum BLAS matrix multiplication
//   - backend/webgpu: GPU matrix multiplication and softplus
type Backend = tensor.Backend

// Tensor is a generic type-safe tensor.
//
// T is the element type and B the backend computing its operations.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Randn creates a tensor with values drawn from N(0, std²) using rng.
//
// Example:
//
//	rng := rand.New(rand.NewPCG(42, 0))
//	w := tensor.Randn[float32](tensor.Shape{128, 784}, 0.01, rng, backend)
func Randn[T DType, B Backend](shape Shape, std float64, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Randn[T, B](shape, std, rng, b)
}

// FromSlice creates a tensor from a Go slice. The data is copied.
//
// Example:
//
//	data := []float32{1, 2, 3, 4, 5, 6}
//	x, err := tensor.FromSlice(data, tensor.Shape{2, 3}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// New wraps a raw tensor.
//
// This is a low-level function. Most users should use FromSlice instead.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw allocates a zeroed raw tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}
