package nn

import (
	"fmt"

	"github.com/born-ml/drbm/internal/autodiff/ops"
	"github.com/born-ml/drbm/internal/tensor"
)

// CrossEntropyLoss computes cross-entropy loss for multi-class classification.
//
// Mathematical Formulation:
//
//	Loss = mean(logsumexp(logits[b]) - logits[b][targets[b]])
//
// Gradient (Backward):
//
//	∂L/∂logits = (Softmax(logits) - y_one_hot) / batch_size
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss(backend)
//	loss := criterion.Forward(scores, targets) // scores: [batch, classes], targets: [batch]
//
// The input is treated as unnormalized scores. Passing probabilities is legal
// and yields a loss bounded below by zero.
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{
		backend: backend,
	}
}

// crossEntropyBackend is implemented by backends that record the loss on a tape.
type crossEntropyBackend interface {
	CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// Forward computes the scalar mean loss.
//
// When using an autodiff-aware backend, this operation is recorded on the tape
// for gradient computation during the backward pass. Panics when targets fall
// outside [0, num_classes).
func (c *CrossEntropyLoss[B]) Forward(
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	if ad, ok := any(c.backend).(crossEntropyBackend); ok {
		return tensor.New[float32, B](ad.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
	}

	if len(logits.Shape()) != 2 {
		panic(fmt.Sprintf("CrossEntropyLoss: logits must be 2D [batch_size, num_classes], got %v", logits.Shape()))
	}
	return tensor.New[float32, B](ops.CrossEntropyForward(logits.Raw(), targets.Raw(), c.backend.Device()), c.backend)
}
