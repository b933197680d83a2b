// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package drbm

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/drbm/internal/tensor"
)

// Posterior is the result of one forward pass.
type Posterior struct {
	// Probabilities is P(y|v), shaped [batch, classes]. While the model's
	// tape is recording it is part of the gradient graph.
	Probabilities *Tensor
	// Predictions holds the most probable class of every sample; ties go to
	// the lowest class index.
	Predictions []int32
}

// Rows copies the probabilities into one slice per sample.
func (p *Posterior) Rows() [][]float32 {
	return p.Probabilities.Rows()
}

// Posterior computes P(y|v) for samples shaped [batch, visible] created on
// the model's backend. It does not modify the model.
//
// For every class i the unnormalized score is
//
//	score[n, i] = exp(c_i) + Σ_h softplus(act[n, h] + U[i, h])
//
// with act = v·Wᵀ + b, computed for all classes at once by broadcasting act
// to [batch, 1, hidden] against U as [1, classes, hidden]. The scores are
// divided by the normalizer chosen by Config.Normalization.
func (m *Model) Posterior(samples *Tensor) (*Posterior, error) {
	if err := m.checkSamples(samples); err != nil {
		return nil, err
	}

	act, err := m.machine.Activation(samples)
	if err != nil {
		return nil, errors.Wrap(ErrShapeMismatch, err.Error())
	}

	batch, classes, hidden := samples.Shape()[0], m.cfg.Classes, m.cfg.Hidden
	u, c := m.u.Tensor(), m.c.Tensor()

	scores := act.Reshape(batch, 1, hidden).
		Add(u.Reshape(1, classes, hidden)).
		Softplus().
		SumDim(2, false).
		Add(c.Exp())

	var norm *Tensor
	switch m.cfg.Normalization {
	case NormalizeCombined:
		norm = act.Add(u.Sum().Reshape(1)).
			Softplus().
			SumDim(1, true).
			Add(c.Sum().Exp().Reshape(1))
	default:
		norm = scores.SumDim(1, true)
	}

	if err := checkScores(scores.Data(), norm.Data()); err != nil {
		return nil, err
	}

	probs := scores.Div(norm)

	// Argmax is never recorded on the tape.
	preds := probs.Argmax(1)
	return &Posterior{
		Probabilities: probs,
		Predictions:   append([]int32(nil), preds.Data()...),
	}, nil
}

// PosteriorRows is Posterior for samples given as rows of visible units.
func (m *Model) PosteriorRows(rows [][]float32) (*Posterior, error) {
	if len(rows) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "empty batch")
	}
	flat := make([]float32, 0, len(rows)*m.cfg.Visible)
	for i, row := range rows {
		if len(row) != m.cfg.Visible {
			return nil, errors.Wrapf(ErrShapeMismatch, "sample %d has %d features, want %d", i, len(row), m.cfg.Visible)
		}
		flat = append(flat, row...)
	}
	samples, err := tensor.FromSlice(flat, tensor.Shape{len(rows), m.cfg.Visible}, m.backend)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}
	return m.Posterior(samples)
}

func (m *Model) checkSamples(samples *Tensor) error {
	if samples == nil {
		return errors.Wrap(ErrInvalidArgument, "nil samples")
	}
	shape := samples.Shape()
	if len(shape) != 2 {
		return errors.Wrapf(ErrShapeMismatch, "samples must be [batch, %d], got %v", m.cfg.Visible, shape)
	}
	if shape[1] != m.cfg.Visible {
		return errors.Wrapf(ErrShapeMismatch, "samples have %d features, want %d", shape[1], m.cfg.Visible)
	}
	if shape[0] == 0 {
		return errors.Wrap(ErrInvalidArgument, "empty batch")
	}
	return nil
}

// checkScores rejects non-finite scores and zero or non-finite normalizers.
func checkScores(scores, norm []float32) error {
	for i, s := range scores {
		if !isFinite(s) {
			return errors.Wrapf(ErrNumerical, "score %d is %v", i, s)
		}
	}
	for i, z := range norm {
		if z == 0 || !isFinite(z) {
			return errors.Wrapf(ErrNumerical, "normalizer of sample %d is %v", i, z)
		}
	}
	return nil
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
