// Package rbm implements the base energy model shared by the supervised
// variants: a Bernoulli Restricted Boltzmann Machine with weights W
// (hidden×visible), visible bias a and hidden bias b.
//
// The machine owns its parameters and a single optimizer. Models that extend
// it register additional parameters as named optimizer groups, so one Step
// call advances everything that received a gradient.
package rbm

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/born-ml/drbm/internal/autodiff"
	"github.com/born-ml/drbm/internal/nn"
	"github.com/born-ml/drbm/internal/optim"
	"github.com/born-ml/drbm/internal/tensor"
)

// Backend is the autodiff-decorated backend every machine computes on.
// The inner backend decides where the arithmetic runs.
type Backend = *autodiff.AutodiffBackend[tensor.Backend]

// Param is a trainable parameter living on Backend.
type Param = *nn.Parameter[Backend]

// BaseGroup names the optimizer group holding W, a and b.
const BaseGroup = "base"

// Weight initialization scale for W.
const weightStd = 0.01

var (
	// ErrInvalidConfig is returned for unusable hyperparameters.
	ErrInvalidConfig = errors.New("rbm: invalid config")
	// ErrShapeMismatch is returned when samples are not [batch, visible].
	ErrShapeMismatch = errors.New("rbm: shape mismatch")
)

// Config holds the hyperparameters of the base model.
type Config struct {
	Visible      int     // number of visible units
	Hidden       int     // number of hidden units
	Steps        int     // Gibbs steps of the unsupervised path
	LearningRate float32 // SGD learning rate
	Momentum     float32 // SGD momentum, [0, 1)
	Decay        float32 // L2 weight decay
	Temperature  float32 // activation temperature, > 0
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Visible <= 0:
		return errors.Wrapf(ErrInvalidConfig, "visible units must be positive, got %d", c.Visible)
	case c.Hidden <= 0:
		return errors.Wrapf(ErrInvalidConfig, "hidden units must be positive, got %d", c.Hidden)
	case c.Steps < 1:
		return errors.Wrapf(ErrInvalidConfig, "steps must be at least 1, got %d", c.Steps)
	case !(c.LearningRate >= 0):
		return errors.Wrapf(ErrInvalidConfig, "learning rate must be non-negative, got %v", c.LearningRate)
	case !(c.Momentum >= 0 && c.Momentum < 1):
		return errors.Wrapf(ErrInvalidConfig, "momentum must be in [0, 1), got %v", c.Momentum)
	case !(c.Decay >= 0):
		return errors.Wrapf(ErrInvalidConfig, "decay must be non-negative, got %v", c.Decay)
	case !(c.Temperature > 0):
		return errors.Wrapf(ErrInvalidConfig, "temperature must be positive, got %v", c.Temperature)
	}
	return nil
}

// Machine is a Bernoulli-Bernoulli RBM.
type Machine struct {
	cfg     Config
	backend Backend

	w *nn.Parameter[Backend] // [hidden, visible]
	a *nn.Parameter[Backend] // [visible]
	b *nn.Parameter[Backend] // [hidden]

	params    []Param
	optimizer *optim.SGD[Backend]
}

// New creates a machine with W ~ N(0, 0.01²) and zero biases, and registers
// its parameters with a fresh SGD optimizer under BaseGroup.
func New(cfg Config, backend Backend, rng *rand.Rand) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "nil backend")
	}
	if rng == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "nil random source")
	}

	m := &Machine{
		cfg:     cfg,
		backend: backend,
		w:       nn.NewParameter("rbm.weight", nn.Normal(tensor.Shape{cfg.Hidden, cfg.Visible}, weightStd, rng, backend)),
		a:       nn.NewParameter("rbm.visible_bias", nn.Zeros(tensor.Shape{cfg.Visible}, backend)),
		b:       nn.NewParameter("rbm.hidden_bias", nn.Zeros(tensor.Shape{cfg.Hidden}, backend)),
		optimizer: optim.NewSGD[Backend](optim.SGDConfig{
			LR:          cfg.LearningRate,
			Momentum:    cfg.Momentum,
			WeightDecay: cfg.Decay,
		}),
	}
	if err := m.Register(BaseGroup, m.w, m.a, m.b); err != nil {
		return nil, err
	}
	return m, nil
}

// Register adds params to the optimizer as a new named group.
func (m *Machine) Register(group string, params ...Param) error {
	if err := m.optimizer.AddParamGroup(group, params); err != nil {
		return err
	}
	m.params = append(m.params, params...)
	return nil
}

// ReplaceGroup swaps the parameters of a registered group.
func (m *Machine) ReplaceGroup(group string, params ...Param) error {
	if err := m.optimizer.ReplaceParamGroup(group, params); err != nil {
		return err
	}
	m.rebuildParams()
	return nil
}

func (m *Machine) rebuildParams() {
	m.params = m.params[:0]
	for _, name := range m.optimizer.ParamGroups() {
		m.params = append(m.params, m.optimizer.Group(name)...)
	}
}

// Parameters returns every registered parameter in registration order.
func (m *Machine) Parameters() []Param {
	return append([]Param(nil), m.params...)
}

// Optimizer returns the optimizer shared by all registered parameters.
func (m *Machine) Optimizer() *optim.SGD[Backend] {
	return m.optimizer
}

// Backend returns the backend parameters live on.
func (m *Machine) Backend() Backend {
	return m.backend
}

// Placement returns the device the machine computes on.
func (m *Machine) Placement() tensor.Device {
	return m.backend.Device()
}

// Config returns the machine's hyperparameters.
func (m *Machine) Config() Config {
	return m.cfg
}

// Visible returns the number of visible units.
func (m *Machine) Visible() int { return m.cfg.Visible }

// Hidden returns the number of hidden units.
func (m *Machine) Hidden() int { return m.cfg.Hidden }

// Weights returns W, shaped [hidden, visible].
func (m *Machine) Weights() Param { return m.w }

// VisibleBias returns a.
func (m *Machine) VisibleBias() Param { return m.a }

// HiddenBias returns b.
func (m *Machine) HiddenBias() Param { return m.b }

// Activation computes the hidden pre-activations v·Wᵀ + b, shaped
// [batch, hidden].
func (m *Machine) Activation(v *tensor.Tensor[float32, Backend]) (*tensor.Tensor[float32, Backend], error) {
	if err := m.checkSamples(v); err != nil {
		return nil, err
	}
	return v.MatMul(m.w.Tensor().T()).Add(m.b.Tensor()), nil
}

// HiddenProbabilities computes P(h=1|v) = sigmoid((v·Wᵀ + b) / T).
func (m *Machine) HiddenProbabilities(v *tensor.Tensor[float32, Backend]) (*tensor.Tensor[float32, Backend], error) {
	act, err := m.Activation(v)
	if err != nil {
		return nil, err
	}
	if m.cfg.Temperature != 1 {
		act = act.MulScalar(1 / float64(m.cfg.Temperature))
	}
	return act.Sigmoid(), nil
}

// FreeEnergy computes F(v) = -v·a - Σ_h softplus(v·Wᵀ + b) per sample,
// shaped [batch].
func (m *Machine) FreeEnergy(v *tensor.Tensor[float32, Backend]) (*tensor.Tensor[float32, Backend], error) {
	act, err := m.Activation(v)
	if err != nil {
		return nil, err
	}
	batch := v.Shape()[0]
	vbias := v.MatMul(m.a.Tensor().Reshape(m.cfg.Visible, 1)).Reshape(batch)
	hidden := act.Softplus().SumDim(1, false)
	return vbias.Add(hidden).MulScalar(-1), nil
}

func (m *Machine) checkSamples(v *tensor.Tensor[float32, Backend]) error {
	if v == nil {
		return errors.Wrap(ErrShapeMismatch, "nil samples")
	}
	shape := v.Shape()
	if len(shape) != 2 || shape[1] != m.cfg.Visible {
		return errors.Wrap(ErrShapeMismatch, fmt.Sprintf("samples %v, want [batch %d]", shape, m.cfg.Visible))
	}
	if shape[0] == 0 {
		return errors.Wrap(ErrShapeMismatch, "empty batch")
	}
	return nil
}
