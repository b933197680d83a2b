// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package drbm

import (
	"bytes"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/drbm/internal/rbm"
)

// Placement selects where the model computes. It is resolved once by New.
type Placement int

const (
	// PlacementLocal runs every kernel on the host CPU.
	PlacementLocal Placement = iota
	// PlacementAccelerated runs matmul and softplus on a WebGPU device.
	PlacementAccelerated
)

// String returns the YAML name of the placement.
func (p Placement) String() string {
	switch p {
	case PlacementLocal:
		return "local"
	case PlacementAccelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// ParsePlacement parses "local" or "accelerated".
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "cpu":
		return PlacementLocal, nil
	case "accelerated", "gpu", "webgpu":
		return PlacementAccelerated, nil
	}
	return 0, errors.Wrapf(ErrInvalidArgument, "unknown placement %q", s)
}

// Normalization selects how per-class scores are turned into P(y|v).
type Normalization int

const (
	// NormalizeClassSum divides every score by the sum of the scores of its
	// sample. Rows sum to one.
	NormalizeClassSum Normalization = iota
	// NormalizeCombined divides by exp(Σc) + Σ_h softplus(act + ΣU), a single
	// score computed from the summed class parameters. Rows need not sum to
	// one; kept for compatibility with models trained that way.
	NormalizeCombined
)

// String returns the YAML name of the normalization.
func (n Normalization) String() string {
	switch n {
	case NormalizeClassSum:
		return "class_sum"
	case NormalizeCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// ParseNormalization parses "class_sum" or "combined".
func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "class_sum", "classsum", "sum":
		return NormalizeClassSum, nil
	case "combined", "legacy":
		return NormalizeCombined, nil
	}
	return 0, errors.Wrapf(ErrInvalidArgument, "unknown normalization %q", s)
}

// Config holds the hyperparameters of a DRBM.
type Config struct {
	Visible int // number of visible units
	Hidden  int // number of hidden units
	Classes int // number of class labels
	Steps   int // Gibbs steps of the unsupervised path; unused by Fit

	LearningRate float32
	Momentum     float32
	Decay        float32 // L2 weight decay
	Temperature  float32

	Placement     Placement
	Normalization Normalization

	// Seed drives parameter initialization and batch shuffling.
	Seed uint64
}

// DefaultConfig returns the reference hyperparameters.
func DefaultConfig() Config {
	return Config{
		Visible:       128,
		Hidden:        128,
		Classes:       1,
		Steps:         1,
		LearningRate:  0.1,
		Momentum:      0,
		Decay:         0,
		Temperature:   1,
		Placement:     PlacementLocal,
		Normalization: NormalizeClassSum,
	}
}

// Validate reports the first invalid field as ErrInvalidArgument.
func (c Config) Validate() error {
	if c.Classes <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "classes must be a positive integer, got %d", c.Classes)
	}
	if err := c.base().Validate(); err != nil {
		return errors.Wrap(ErrInvalidArgument, err.Error())
	}
	if c.Placement != PlacementLocal && c.Placement != PlacementAccelerated {
		return errors.Wrapf(ErrInvalidArgument, "unknown placement %d", int(c.Placement))
	}
	if c.Normalization != NormalizeClassSum && c.Normalization != NormalizeCombined {
		return errors.Wrapf(ErrInvalidArgument, "unknown normalization %d", int(c.Normalization))
	}
	return nil
}

func (c Config) base() rbm.Config {
	return rbm.Config{
		Visible:      c.Visible,
		Hidden:       c.Hidden,
		Steps:        c.Steps,
		LearningRate: c.LearningRate,
		Momentum:     c.Momentum,
		Decay:        c.Decay,
		Temperature:  c.Temperature,
	}
}

// yamlConfig mirrors Config with numeric fields decoded as float64 so that
// non-integer counts are reported instead of silently truncated.
type yamlConfig struct {
	Visible       *float64 `yaml:"visible"`
	Hidden        *float64 `yaml:"hidden"`
	Classes       *float64 `yaml:"classes"`
	Steps         *float64 `yaml:"steps"`
	LearningRate  *float64 `yaml:"learning_rate"`
	Momentum      *float64 `yaml:"momentum"`
	Decay         *float64 `yaml:"decay"`
	Temperature   *float64 `yaml:"temperature"`
	Placement     *string  `yaml:"placement"`
	Normalization *string  `yaml:"normalization"`
	Seed          *uint64  `yaml:"seed"`
}

// ParseConfig decodes a YAML document into a Config. Fields that are absent
// keep their DefaultConfig value. Unknown keys are rejected.
//
//	visible: 784
//	hidden: 128
//	classes: 10
//	learning_rate: 0.1
//	placement: local
//	normalization: class_sum
//	seed: 42
func ParseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	var raw yamlConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(ErrInvalidArgument, err.Error())
	}

	ints := []struct {
		name string
		src  *float64
		dst  *int
	}{
		{"visible", raw.Visible, &cfg.Visible},
		{"hidden", raw.Hidden, &cfg.Hidden},
		{"classes", raw.Classes, &cfg.Classes},
		{"steps", raw.Steps, &cfg.Steps},
	}
	for _, f := range ints {
		if f.src == nil {
			continue
		}
		v := *f.src
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
			return Config{}, errors.Wrapf(ErrInvalidArgument, "%s must be an integer, got %v", f.name, v)
		}
		*f.dst = int(v)
	}

	floats := []struct {
		src *float64
		dst *float32
	}{
		{raw.LearningRate, &cfg.LearningRate},
		{raw.Momentum, &cfg.Momentum},
		{raw.Decay, &cfg.Decay},
		{raw.Temperature, &cfg.Temperature},
	}
	for _, f := range floats {
		if f.src != nil {
			*f.dst = float32(*f.src)
		}
	}

	if raw.Placement != nil {
		p, err := ParsePlacement(*raw.Placement)
		if err != nil {
			return Config{}, err
		}
		cfg.Placement = p
	}
	if raw.Normalization != nil {
		n, err := ParseNormalization(*raw.Normalization)
		if err != nil {
			return Config{}, err
		}
		cfg.Normalization = n
	}
	if raw.Seed != nil {
		cfg.Seed = *raw.Seed
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	cfg, err := ParseConfig(b)
	if err != nil {
		return Config{}, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}
