package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/drbm/internal/tensor"
)

// CrossEntropyOp represents the cross-entropy loss operation.
//
// Forward:
//
//	Loss = mean(logsumexp(logits[b]) - logits[b][targets[b]])
//
// Backward:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size
//
// Assumptions:
//   - Logits shape: [batch_size, num_classes] (2D, float32 or float64)
//   - Targets shape: [batch_size] (1D int32 class indices)
//   - Output: scalar loss (mean over batch)
type CrossEntropyOp struct {
	base
	targets *tensor.RawTensor
}

// NewCrossEntropyOp creates a new cross-entropy operation.
// Only the logits receive a gradient.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{base: newBase(output, logits), targets: targets}
}

// CrossEntropyForward computes the mean cross-entropy of logits against
// int32 targets. Panics on shape, dtype, or target range errors.
func CrossEntropyForward(logits, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	batch, classes := checkCrossEntropy(logits, targets)

	result := tensor.MustRaw(tensor.Shape{}, logits.DType(), device)
	ys := targets.AsInt32()

	var total float64
	for b := 0; b < batch; b++ {
		row := rowFloat64(logits, b, classes)
		total += logSumExp(row) - row[ys[b]]
	}
	loss := total / float64(batch)

	switch logits.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = float32(loss)
	default:
		result.AsFloat64()[0] = loss
	}
	return result
}

// Backward computes the gradient with respect to logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	logits := op.inputs[0]
	batch, classes := checkCrossEntropy(logits, op.targets)
	scale := outputGrad.Float64At(0) / float64(batch)
	ys := op.targets.AsInt32()

	grad := tensor.MustRaw(logits.Shape(), logits.DType(), logits.Device())
	for b := 0; b < batch; b++ {
		row := rowFloat64(logits, b, classes)
		lse := logSumExp(row)
		for i, z := range row {
			g := math.Exp(z - lse)
			if int32(i) == ys[b] {
				g--
			}
			setFloat64(grad, b*classes+i, g*scale)
		}
	}
	return []*tensor.RawTensor{grad}
}

func checkCrossEntropy(logits, targets *tensor.RawTensor) (batch, classes int) {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cross_entropy: logits must be 2D [batch, classes], got %v", shape))
	}
	if !logits.DType().IsFloat() {
		panic(fmt.Sprintf("cross_entropy: unsupported logits dtype %s", logits.DType()))
	}
	if targets.DType() != tensor.Int32 {
		panic(fmt.Sprintf("cross_entropy: targets must be int32, got %s", targets.DType()))
	}
	batch, classes = shape[0], shape[1]
	if targets.NumElements() != batch {
		panic(fmt.Sprintf("cross_entropy: %d targets for batch of %d", targets.NumElements(), batch))
	}
	for i, y := range targets.AsInt32() {
		if y < 0 || int(y) >= classes {
			panic(fmt.Sprintf("cross_entropy: target %d at index %d out of range [0, %d)", y, i, classes))
		}
	}
	return batch, classes
}

func rowFloat64(t *tensor.RawTensor, row, width int) []float64 {
	out := make([]float64, width)
	for i := range out {
		out[i] = t.Float64At(row*width + i)
	}
	return out
}

func setFloat64(t *tensor.RawTensor, i int, v float64) {
	switch t.DType() {
	case tensor.Float32:
		t.AsFloat32()[i] = float32(v)
	default:
		t.AsFloat64()[i] = v
	}
}

// logSumExp computes log(Σ exp(z)) using the max-shift trick.
func logSumExp(z []float64) float64 {
	m := math.Inf(-1)
	for _, v := range z {
		m = math.Max(m, v)
	}
	if math.IsInf(m, 0) {
		return m
	}
	var s float64
	for _, v := range z {
		s += math.Exp(v - m)
	}
	return m + math.Log(s)
}
