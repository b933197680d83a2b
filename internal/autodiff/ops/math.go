package ops

import "github.com/born-ml/drbm/internal/tensor"

// ExpOp represents output = exp(x); d/dx = exp(x) = output.
type ExpOp struct{ base }

// NewExpOp creates a new ExpOp.
func NewExpOp(x, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{newBase(output, x)}
}

// Backward computes grad_x = grad * exp(x).
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}

// LogOp represents output = log(x); d/dx = 1/x.
type LogOp struct{ base }

// NewLogOp creates a new LogOp.
func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{newBase(output, x)}
}

// Backward computes grad_x = grad / x.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.inputs[0])}
}

// SigmoidOp represents output = σ(x); d/dx = σ(x)(1 - σ(x)).
type SigmoidOp struct{ base }

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(x, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{newBase(output, x)}
}

// Backward computes grad_x = grad * σ(x) * (1 - σ(x)).
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	oneMinus := backend.AddScalar(backend.MulScalar(op.output, -1), 1)
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.Mul(op.output, oneMinus))}
}

// SoftplusOp represents output = log(1 + exp(x)); d/dx = σ(x).
type SoftplusOp struct{ base }

// NewSoftplusOp creates a new SoftplusOp.
func NewSoftplusOp(x, output *tensor.RawTensor) *SoftplusOp {
	return &SoftplusOp{newBase(output, x)}
}

// Backward computes grad_x = grad * σ(x).
func (op *SoftplusOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.Sigmoid(op.inputs[0]))}
}
