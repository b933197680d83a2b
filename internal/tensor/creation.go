package tensor

import (
	"fmt"
	"math/rand/v2"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return New[T, B](MustRaw(shape, inferDataType[T](), b.Device()), b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a float tensor with values drawn from N(0, std²) using rng.
// Panics for integer element types.
//
// Example:
//
//	rng := rand.New(rand.NewPCG(42, 0))
//	w := tensor.Randn[float32](Shape{16, 784}, 0.01, rng, backend)
func Randn[T DType, B Backend](shape Shape, std float64, rng *rand.Rand, b B) *Tensor[T, B] {
	dtype := inferDataType[T]()
	if !dtype.IsFloat() {
		panic(fmt.Sprintf("randn: unsupported dtype %s", dtype))
	}

	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(rng.NormFloat64() * std)
	}
	return t
}
