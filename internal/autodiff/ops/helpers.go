package ops

import "github.com/born-ml/drbm/internal/tensor"

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad.Clone()
	}

	// Leading dimensions added by broadcasting.
	for len(grad.Shape()) > len(targetShape) {
		grad = backend.SumDim(grad, 0, false)
	}

	// Dimensions stretched from 1.
	for i, dim := range targetShape {
		if dim == 1 && grad.Shape()[i] != 1 {
			grad = backend.SumDim(grad, i, true)
		}
	}

	return grad
}

