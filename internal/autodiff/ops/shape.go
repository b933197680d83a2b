package ops

import "github.com/born-ml/drbm/internal/tensor"

// SumOp represents output = Σ x (scalar).
type SumOp struct{ base }

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{newBase(output, x)}
}

// Backward broadcasts the scalar gradient back to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Expand(outputGrad, op.inputs[0].Shape())}
}

// SumDimOp represents output = Σ_dim x.
type SumDimOp struct {
	base
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp. dim must already be normalized.
func NewSumDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{base: newBase(output, x), dim: dim, keepDim: keepDim}
}

// Backward re-inserts the reduced dimension and broadcasts along it.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.inputs[0].Shape()
	grad := outputGrad
	if !op.keepDim {
		kept := inShape.Clone()
		kept[op.dim] = 1
		grad = backend.Reshape(grad, kept)
	}
	return []*tensor.RawTensor{backend.Expand(grad, inShape)}
}

// ExpandOp represents output = broadcast(x, shape).
type ExpandOp struct{ base }

// NewExpandOp creates a new ExpandOp.
func NewExpandOp(x, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{newBase(output, x)}
}

// Backward sums the gradient over the broadcast dimensions.
func (op *ExpandOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{reduceBroadcast(outputGrad, op.inputs[0].Shape(), backend)}
}

// ReshapeOp represents output = reshape(x).
type ReshapeOp struct{ base }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{newBase(output, x)}
}

// Backward reshapes the gradient back to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.inputs[0].Shape())}
}

// TransposeOp represents output = permute(x, axes).
type TransposeOp struct {
	base
	axes []int
}

// NewTransposeOp creates a new TransposeOp. Empty axes mean full reversal.
func NewTransposeOp(x, output *tensor.RawTensor, axes []int) *TransposeOp {
	if len(axes) == 0 {
		n := len(x.Shape())
		axes = make([]int, n)
		for i := range axes {
			axes[i] = n - 1 - i
		}
	}
	return &TransposeOp{base: newBase(output, x), axes: append([]int(nil), axes...)}
}

// Backward applies the inverse permutation to the gradient.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}
