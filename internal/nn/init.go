package nn

import (
	"math/rand/v2"

	"github.com/born-ml/drbm/internal/tensor"
)

// Normal creates a float32 tensor with values drawn from N(0, std²).
//
// The energy models use it for their coupling weights: 0.01 for W and 0.05
// for the class weights U.
func Normal[B tensor.Backend](shape tensor.Shape, std float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return tensor.Randn[float32](shape, std, rng, backend)
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}
