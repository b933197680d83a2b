package ops

import "github.com/born-ml/drbm/internal/tensor"

// MatMulOp represents output = a @ b for 2-D a [M,K] and b [K,N].
//
// Backward pass:
//   - grad_a = grad @ bᵀ  [M,N] @ [N,K] → [M,K]
//   - grad_b = aᵀ @ grad  [K,M] @ [M,N] → [K,N]
type MatMulOp struct{ base }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{newBase(output, a, b)}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(b)),
		backend.MatMul(backend.Transpose(a), outputGrad),
	}
}
