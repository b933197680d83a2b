// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package drbm

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/born-ml/drbm/internal/autodiff"
	"github.com/born-ml/drbm/internal/backend/cpu"
	"github.com/born-ml/drbm/internal/backend/webgpu"
	"github.com/born-ml/drbm/internal/history"
	"github.com/born-ml/drbm/internal/nn"
	"github.com/born-ml/drbm/internal/rbm"
	"github.com/born-ml/drbm/internal/tensor"
)

// ClassGroup names the optimizer group holding U and c.
const ClassGroup = "classes"

// Class weight initialization scale.
const classWeightStd = 0.05

// Random stream of the model's generator; the seed is Config.Seed.
const rngStream = 0x64726d62

// Backend is the autodiff backend every model computes on.
type Backend = rbm.Backend

// Tensor is a float32 tensor living on a model's backend.
type Tensor = tensor.Tensor[float32, Backend]

// Labels is an int32 tensor of class indices living on a model's backend.
type Labels = tensor.Tensor[int32, Backend]

// Machine is the base energy model a DRBM extends.
type Machine = rbm.Machine

// Loss turns posterior probabilities and integer labels into a scalar loss.
// The probabilities are treated as unnormalized scores.
type Loss interface {
	Forward(scores *Tensor, targets *Labels) *Tensor
}

// NewCrossEntropyLoss returns the default loss bound to backend, for wrapping
// in custom losses.
func NewCrossEntropyLoss(backend Backend) Loss {
	return nn.NewCrossEntropyLoss(backend)
}

// Option configures New.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	recorder history.Recorder
	loss     Loss
	backend  tensor.Backend
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRecorder forwards every epoch record to r in addition to the model's
// own history.
func WithRecorder(r history.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithLoss replaces the cross-entropy loss.
func WithLoss(loss Loss) Option {
	return func(o *options) {
		o.loss = loss
	}
}

// WithBackend computes on b instead of the backend selected by
// Config.Placement.
func WithBackend(b tensor.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// Model is a Discriminative Restricted Boltzmann Machine: the base RBM plus
// class weights U [classes, hidden] and class bias c [classes], all trained
// by one optimizer on the cross-entropy of the closed-form posterior P(y|v).
//
// A Model is not safe for concurrent use.
type Model struct {
	cfg     Config
	machine *rbm.Machine
	backend Backend
	release func()

	u *nn.Parameter[Backend]
	c *nn.Parameter[Backend]

	loss     Loss
	rng      *rand.Rand
	history  *history.History
	recorder history.Recorder
	logger   *slog.Logger
}

// New validates cfg, resolves the placement and creates the model with
// W ~ N(0, 0.01²), U ~ N(0, 0.05²) and zero biases.
func New(cfg Config, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	inner, release, err := resolveBackend(cfg.Placement, o.backend)
	if err != nil {
		return nil, err
	}
	backend := autodiff.New(inner)
	rng := rand.New(rand.NewPCG(cfg.Seed, rngStream))

	machine, err := rbm.New(cfg.base(), backend, rng)
	if err != nil {
		release()
		return nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}

	m := &Model{
		cfg:      cfg,
		machine:  machine,
		backend:  backend,
		release:  release,
		loss:     o.loss,
		rng:      rng,
		history:  history.New(),
		recorder: o.recorder,
		logger:   o.logger,
	}
	if m.loss == nil {
		m.loss = NewCrossEntropyLoss(backend)
	}

	m.u, m.c = m.newClassParams(cfg.Classes)
	if err := machine.Register(ClassGroup, m.u, m.c); err != nil {
		release()
		return nil, errors.Wrap(err, "register class parameters")
	}

	m.logger.Info("drbm created",
		"visible", cfg.Visible,
		"hidden", cfg.Hidden,
		"classes", cfg.Classes,
		"backend", backend.Name(),
		"normalization", cfg.Normalization.String(),
	)
	return m, nil
}

func resolveBackend(p Placement, override tensor.Backend) (tensor.Backend, func(), error) {
	if override != nil {
		return override, func() {}, nil
	}
	switch p {
	case PlacementAccelerated:
		gpu, err := webgpu.New()
		if err != nil {
			return nil, nil, errors.Wrap(ErrDeviceUnavailable, err.Error())
		}
		return gpu, gpu.Release, nil
	default:
		return cpu.New(), func() {}, nil
	}
}

func (m *Model) newClassParams(classes int) (u, c *nn.Parameter[Backend]) {
	u = nn.NewParameter("drbm.class_weight", nn.Normal(tensor.Shape{classes, m.cfg.Hidden}, classWeightStd, m.rng, m.backend))
	c = nn.NewParameter("drbm.class_bias", nn.Zeros(tensor.Shape{classes}, m.backend))
	return u, c
}

// Close releases device resources. The model must not be used afterwards.
func (m *Model) Close() {
	if m.release != nil {
		m.release()
		m.release = nil
	}
}

// Config returns the model's configuration.
func (m *Model) Config() Config {
	return m.cfg
}

// Classes returns the number of class labels.
func (m *Model) Classes() int {
	return m.cfg.Classes
}

// Machine returns the base energy model.
func (m *Model) Machine() *Machine {
	return m.machine
}

// Backend returns the backend parameters live on. Samples passed to
// Posterior must be created on it.
func (m *Model) Backend() Backend {
	return m.backend
}

// Weights returns a copy of W, shaped [hidden][visible].
func (m *Model) Weights() [][]float32 {
	return m.machine.Weights().Tensor().Rows()
}

// VisibleBias returns a copy of the visible bias.
func (m *Model) VisibleBias() []float32 {
	return m.machine.VisibleBias().Snapshot()
}

// HiddenBias returns a copy of the hidden bias.
func (m *Model) HiddenBias() []float32 {
	return m.machine.HiddenBias().Snapshot()
}

// ClassWeights returns a copy of U, shaped [classes][hidden].
func (m *Model) ClassWeights() [][]float32 {
	return m.u.Tensor().Rows()
}

// ClassBias returns a copy of c.
func (m *Model) ClassBias() []float32 {
	return m.c.Snapshot()
}

// History returns a copy of every epoch record produced by Fit.
func (m *Model) History() []history.Record {
	return m.history.Records()
}

// SetClassWeights replaces U. The new matrix must be [classes][hidden] and
// finite. Optimizer state for the old U is dropped.
func (m *Model) SetClassWeights(u [][]float32) error {
	if len(u) != m.cfg.Classes {
		return errors.Wrapf(ErrInvalidArgument, "class weights have %d rows, want %d", len(u), m.cfg.Classes)
	}
	flat := make([]float32, 0, m.cfg.Classes*m.cfg.Hidden)
	for i, row := range u {
		if len(row) != m.cfg.Hidden {
			return errors.Wrapf(ErrInvalidArgument, "class weights row %d has %d columns, want %d", i, len(row), m.cfg.Hidden)
		}
		if err := checkFinite(fmt.Sprintf("class weights row %d", i), row); err != nil {
			return err
		}
		flat = append(flat, row...)
	}

	t, err := tensor.FromSlice(flat, tensor.Shape{m.cfg.Classes, m.cfg.Hidden}, m.backend)
	if err != nil {
		return errors.Wrap(ErrInvalidArgument, err.Error())
	}
	return m.replaceClassParams(nn.NewParameter(m.u.Name(), t), m.c)
}

// SetClassBias replaces c. The new vector must have one finite entry per class.
func (m *Model) SetClassBias(c []float32) error {
	if len(c) != m.cfg.Classes {
		return errors.Wrapf(ErrInvalidArgument, "class bias has %d entries, want %d", len(c), m.cfg.Classes)
	}
	if err := checkFinite("class bias", c); err != nil {
		return err
	}
	t, err := tensor.FromSlice(c, tensor.Shape{m.cfg.Classes}, m.backend)
	if err != nil {
		return errors.Wrap(ErrInvalidArgument, err.Error())
	}
	return m.replaceClassParams(m.u, nn.NewParameter(m.c.Name(), t))
}

// SetLoss replaces the training loss.
func (m *Model) SetLoss(loss Loss) error {
	if loss == nil {
		return errors.Wrap(ErrInvalidArgument, "nil loss")
	}
	m.loss = loss
	return nil
}

// Reconfigure changes the number of classes. U and c are re-initialized and
// replace the old class parameters in the optimizer; W and the biases are kept.
func (m *Model) Reconfigure(classes int) error {
	if classes <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "classes must be a positive integer, got %d", classes)
	}
	u, c := m.newClassParams(classes)
	if err := m.replaceClassParams(u, c); err != nil {
		return err
	}
	m.cfg.Classes = classes
	m.logger.Info("drbm reconfigured", "classes", classes)
	return nil
}

func (m *Model) replaceClassParams(u, c *nn.Parameter[Backend]) error {
	if err := m.machine.ReplaceGroup(ClassGroup, u, c); err != nil {
		return errors.Wrap(err, "replace class parameters")
	}
	m.u, m.c = u, c
	return nil
}

func checkFinite(what string, values []float32) error {
	for j, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return errors.Wrapf(ErrInvalidArgument, "%s: entry %d is %v", what, j, v)
		}
	}
	return nil
}
