// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package drbm_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/drbm"
	"github.com/born-ml/drbm/backend/cpu"
	"github.com/born-ml/drbm/backend/webgpu"
	"github.com/born-ml/drbm/internal/history"
	"github.com/born-ml/drbm/tensor"
)

func quiet() drbm.Option {
	return drbm.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func smallConfig() drbm.Config {
	cfg := drbm.DefaultConfig()
	cfg.Visible = 4
	cfg.Hidden = 3
	cfg.Classes = 2
	cfg.Seed = 42
	return cfg
}

func newModel(t *testing.T, cfg drbm.Config, opts ...drbm.Option) *drbm.Model {
	t.Helper()
	m, err := drbm.New(cfg, append([]drbm.Option{quiet()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// randomDataset returns n binary samples with labels cycling through classes.
func randomDataset(t *testing.T, n, visible, classes int, seed uint64) *drbm.InMemory {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 1))
	features := make([][]float32, n)
	labels := make([]int32, n)
	for i := range features {
		features[i] = make([]float32, visible)
		for j := range features[i] {
			if rng.Float64() < 0.5 {
				features[i][j] = 1
			}
		}
		labels[i] = int32(i % classes)
	}
	ds, err := drbm.NewDataset(features, labels)
	require.NoError(t, err)
	return ds
}

func softplus(x float64) float64 {
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}

// referenceScores computes the unnormalized class scores and both
// normalizers of one sample from the model's parameters.
func referenceScores(m *drbm.Model, v []float32) (scores []float64, classSum, combined float64) {
	w, b := m.Weights(), m.HiddenBias()
	u, c := m.ClassWeights(), m.ClassBias()

	act := make([]float64, len(b))
	for h := range act {
		act[h] = float64(b[h])
		for i, x := range v {
			act[h] += float64(x) * float64(w[h][i])
		}
	}

	var sumU, sumC float64
	scores = make([]float64, len(c))
	for k := range scores {
		scores[k] = math.Exp(float64(c[k]))
		for h := range act {
			scores[k] += softplus(act[h] + float64(u[k][h]))
			sumU += float64(u[k][h])
		}
		sumC += float64(c[k])
		classSum += scores[k]
	}

	combined = math.Exp(sumC)
	for h := range act {
		combined += softplus(act[h] + sumU)
	}
	return scores, classSum, combined
}

func TestNew_Defaults(t *testing.T) {
	m := newModel(t, smallConfig())

	assert.Equal(t, 2, m.Classes())
	require.Len(t, m.ClassWeights(), 2)
	assert.Len(t, m.ClassWeights()[0], 3)
	assert.Equal(t, []float32{0, 0}, m.ClassBias())
	assert.Equal(t, []float32{0, 0, 0}, m.HiddenBias())
	assert.Equal(t, []float32{0, 0, 0, 0}, m.VisibleBias())
	assert.Equal(t, tensor.CPU, m.Machine().Placement())

	for _, row := range m.ClassWeights() {
		for _, v := range row {
			assert.Less(t, math.Abs(float64(v)), 0.5)
		}
	}

	// One optimizer owns the base and the class parameters.
	assert.Equal(t, []string{"base", drbm.ClassGroup}, m.Machine().Optimizer().ParamGroups())
	assert.Len(t, m.Machine().Parameters(), 5)
	assert.Empty(t, m.History())
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*drbm.Config)
	}{
		{"zero classes", func(c *drbm.Config) { c.Classes = 0 }},
		{"negative classes", func(c *drbm.Config) { c.Classes = -3 }},
		{"zero visible", func(c *drbm.Config) { c.Visible = 0 }},
		{"zero hidden", func(c *drbm.Config) { c.Hidden = 0 }},
		{"zero steps", func(c *drbm.Config) { c.Steps = 0 }},
		{"negative learning rate", func(c *drbm.Config) { c.LearningRate = -1 }},
		{"momentum out of range", func(c *drbm.Config) { c.Momentum = 1.5 }},
		{"negative decay", func(c *drbm.Config) { c.Decay = -0.1 }},
		{"zero temperature", func(c *drbm.Config) { c.Temperature = 0 }},
		{"unknown placement", func(c *drbm.Config) { c.Placement = 7 }},
		{"unknown normalization", func(c *drbm.Config) { c.Normalization = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.mutate(&cfg)
			_, err := drbm.New(cfg, quiet())
			assert.True(t, errors.Is(err, drbm.ErrInvalidArgument), "got %v", err)
		})
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := drbm.ParseConfig([]byte(`
visible: 784
hidden: 64
classes: 10
learning_rate: 0.05
momentum: 0.5
placement: local
normalization: combined
seed: 7
`))
	require.NoError(t, err)
	assert.Equal(t, 784, cfg.Visible)
	assert.Equal(t, 64, cfg.Hidden)
	assert.Equal(t, 10, cfg.Classes)
	assert.Equal(t, 1, cfg.Steps)
	assert.InDelta(t, 0.05, cfg.LearningRate, 1e-7)
	assert.InDelta(t, 0.5, cfg.Momentum, 1e-7)
	assert.InDelta(t, 1, cfg.Temperature, 1e-7)
	assert.Equal(t, drbm.PlacementLocal, cfg.Placement)
	assert.Equal(t, drbm.NormalizeCombined, cfg.Normalization)
	assert.Equal(t, uint64(7), cfg.Seed)

	empty, err := drbm.ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, drbm.DefaultConfig(), empty)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"fractional classes": "classes: 3.5",
		"zero classes":       "classes: 0",
		"negative classes":   "classes: -3",
		"fractional hidden":  "hidden: 1.25",
		"unknown key":        "classez: 2",
		"bad placement":      "placement: tpu",
		"bad normalization":  "normalization: softmax",
		"not yaml":           "classes: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := drbm.ParseConfig([]byte(doc))
			assert.True(t, errors.Is(err, drbm.ErrInvalidArgument), "got %v", err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drbm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("visible: 4\nhidden: 3\nclasses: 2\n"), 0o600))

	cfg, err := drbm.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Classes)

	_, err = drbm.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPlacementAccelerated(t *testing.T) {
	cfg := smallConfig()
	cfg.Placement = drbm.PlacementAccelerated

	m, err := drbm.New(cfg, quiet())
	if !webgpu.IsAvailable() {
		assert.True(t, errors.Is(err, drbm.ErrDeviceUnavailable), "got %v", err)
		return
	}
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, tensor.WebGPU, m.Machine().Placement())
}

func TestWithBackend(t *testing.T) {
	cfg := smallConfig()
	// An explicit backend overrides the placement.
	cfg.Placement = drbm.PlacementAccelerated
	m := newModel(t, cfg, drbm.WithBackend(cpu.New()))
	assert.Equal(t, tensor.CPU, m.Machine().Placement())

	same := newModel(t, smallConfig())
	assert.Equal(t, same.Weights(), m.Weights())
}

func TestPosterior_RowsSumToOne(t *testing.T) {
	cfg := smallConfig()
	cfg.Visible, cfg.Hidden, cfg.Classes = 6, 5, 4
	m := newModel(t, cfg)

	ds := randomDataset(t, 16, 6, 4, 3)
	rows := make([][]float32, ds.Len())
	for i := range rows {
		ex, _ := ds.Example(i)
		rows[i] = ex.Features
	}

	post, err := m.PosteriorRows(rows)
	require.NoError(t, err)
	require.True(t, post.Probabilities.Shape().Equal(tensor.Shape{16, 4}))
	require.Len(t, post.Predictions, 16)

	for n, row := range post.Rows() {
		var sum float64
		best := 0
		for k, p := range row {
			assert.GreaterOrEqual(t, p, float32(0))
			sum += float64(p)
			if p > row[best] {
				best = k
			}
		}
		assert.InDelta(t, 1, sum, 1e-5, "row %d", n)
		assert.Equal(t, int32(best), post.Predictions[n], "row %d", n)
	}
}

func TestPosterior_MatchesReference(t *testing.T) {
	for _, norm := range []drbm.Normalization{drbm.NormalizeClassSum, drbm.NormalizeCombined} {
		t.Run(norm.String(), func(t *testing.T) {
			cfg := smallConfig()
			cfg.Classes = 3
			cfg.Normalization = norm
			m := newModel(t, cfg)
			require.NoError(t, m.SetClassBias([]float32{0.2, -0.1, 0.05}))

			rows := [][]float32{{1, 0, 1, 0}, {0, 1, 1, 1}}
			post, err := m.PosteriorRows(rows)
			require.NoError(t, err)

			got := post.Rows()
			for n, v := range rows {
				scores, classSum, combined := referenceScores(m, v)
				z := classSum
				if norm == drbm.NormalizeCombined {
					z = combined
				}
				for k, s := range scores {
					assert.InDelta(t, s/z, float64(got[n][k]), 1e-5)
				}
			}
		})
	}
}

func TestPosterior_TiesGoToLowestClass(t *testing.T) {
	cfg := smallConfig()
	cfg.Classes = 3
	m := newModel(t, cfg)
	require.NoError(t, m.SetClassWeights([][]float32{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}))

	post, err := m.PosteriorRows([][]float32{{1, 1, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []int32{0}, post.Predictions)
	for _, p := range post.Rows()[0] {
		assert.InDelta(t, 1.0/3, p, 1e-6)
	}
}

func TestPosterior_ShapeMismatch(t *testing.T) {
	m := newModel(t, smallConfig())

	_, err := m.PosteriorRows([][]float32{{1, 0, 1}})
	assert.True(t, errors.Is(err, drbm.ErrShapeMismatch))

	samples, err := tensor.FromSlice([]float32{1, 0, 1, 0, 1}, tensor.Shape{1, 5}, m.Backend())
	require.NoError(t, err)
	_, err = m.Posterior(samples)
	assert.True(t, errors.Is(err, drbm.ErrShapeMismatch))

	flat, err := tensor.FromSlice([]float32{1, 0, 1, 0}, tensor.Shape{4}, m.Backend())
	require.NoError(t, err)
	_, err = m.Posterior(flat)
	assert.True(t, errors.Is(err, drbm.ErrShapeMismatch))

	_, err = m.PosteriorRows(nil)
	assert.True(t, errors.Is(err, drbm.ErrInvalidArgument))
}

func TestPosterior_Numerical(t *testing.T) {
	m := newModel(t, smallConfig())
	// exp(200) overflows float32.
	require.NoError(t, m.SetClassBias([]float32{200, 0}))

	_, err := m.PosteriorRows([][]float32{{1, 0, 1, 0}})
	assert.True(t, errors.Is(err, drbm.ErrNumerical), "got %v", err)
}

func TestPosterior_DoesNotMutate(t *testing.T) {
	m := newModel(t, smallConfig())
	w, u := m.Weights(), m.ClassWeights()

	_, err := m.PosteriorRows([][]float32{{1, 0, 1, 0}})
	require.NoError(t, err)
	assert.Equal(t, w, m.Weights())
	assert.Equal(t, u, m.ClassWeights())
}

func TestFit_ZeroEpochs(t *testing.T) {
	m := newModel(t, smallConfig())
	ds := randomDataset(t, 8, 4, 2, 1)
	w, b, u, c := m.Weights(), m.HiddenBias(), m.ClassWeights(), m.ClassBias()

	loss, acc, err := m.Fit(context.Background(), ds, drbm.FitOptions{BatchSize: 4, Epochs: 0, Shuffle: true})
	require.NoError(t, err)
	assert.Zero(t, loss)
	assert.Zero(t, acc)
	assert.Empty(t, m.History())

	assert.Equal(t, w, m.Weights())
	assert.Equal(t, b, m.HiddenBias())
	assert.Equal(t, u, m.ClassWeights())
	assert.Equal(t, c, m.ClassBias())
}

func TestFit_RecordsEveryEpoch(t *testing.T) {
	rec := history.New()
	m := newModel(t, smallConfig(), drbm.WithRecorder(rec))
	ds := randomDataset(t, 10, 4, 2, 2)

	const epochs = 3
	loss, acc, err := m.Fit(context.Background(), ds, drbm.FitOptions{BatchSize: 4, Epochs: epochs, Shuffle: true})
	require.NoError(t, err)

	records := m.History()
	require.Len(t, records, epochs)
	for i, r := range records {
		assert.Equal(t, i+1, r.Epoch)
		assert.Equal(t, records[0].RunID, r.RunID)
		assert.GreaterOrEqual(t, r.Loss, 0.0)
		assert.False(t, math.IsNaN(r.Loss) || math.IsInf(r.Loss, 0))
		assert.GreaterOrEqual(t, r.Accuracy, 0.0)
		assert.LessOrEqual(t, r.Accuracy, 1.0)
		assert.GreaterOrEqual(t, r.Elapsed.Nanoseconds(), int64(0))
	}
	assert.Equal(t, records[epochs-1].Loss, loss)
	assert.Equal(t, records[epochs-1].Accuracy, acc)
	assert.Equal(t, epochs, rec.Len())

	// A second run appends under a new run id.
	_, _, err = m.Fit(context.Background(), ds, drbm.FitOptions{BatchSize: 4, Epochs: 1})
	require.NoError(t, err)
	records = m.History()
	require.Len(t, records, epochs+1)
	assert.NotEqual(t, records[0].RunID, records[epochs].RunID)
}

// TestFit_EndToEnd trains a 4-visible, 3-hidden, 2-class model for one epoch
// on two samples.
func TestFit_EndToEnd(t *testing.T) {
	m := newModel(t, smallConfig())
	ds, err := drbm.NewDataset([][]float32{{1, 0, 1, 0}, {0, 1, 0, 1}}, []int32{0, 1})
	require.NoError(t, err)

	w, b, u, c := m.Weights(), m.HiddenBias(), m.ClassWeights(), m.ClassBias()
	a := m.VisibleBias()

	loss, acc, err := m.Fit(context.Background(), ds, drbm.FitOptions{BatchSize: 2, Epochs: 1, Shuffle: true})
	require.NoError(t, err)

	assert.False(t, math.IsNaN(loss) || math.IsInf(loss, 0))
	assert.GreaterOrEqual(t, loss, 0.0)
	assert.Contains(t, []float64{0, 0.5, 1}, acc)

	assert.NotEqual(t, w, m.Weights(), "W")
	assert.NotEqual(t, b, m.HiddenBias(), "b")
	assert.NotEqual(t, u, m.ClassWeights(), "U")
	assert.NotEqual(t, c, m.ClassBias(), "c")
	// The visible bias does not take part in the posterior.
	assert.Equal(t, a, m.VisibleBias())
	assert.Len(t, m.History(), 1)
}

func TestFit_Deterministic(t *testing.T) {
	run := func() *drbm.Model {
		cfg := smallConfig()
		cfg.Momentum = 0.5
		cfg.Decay = 0.001
		m := newModel(t, cfg)
		ds := randomDataset(t, 12, 4, 2, 5)
		_, _, err := m.Fit(context.Background(), ds, drbm.FitOptions{BatchSize: 5, Epochs: 2, Shuffle: true, Prefetch: 1})
		require.NoError(t, err)
		return m
	}

	a, b := run(), run()
	assert.Equal(t, a.Weights(), b.Weights())
	assert.Equal(t, a.HiddenBias(), b.HiddenBias())
	assert.Equal(t, a.ClassWeights(), b.ClassWeights())
	assert.Equal(t, a.ClassBias(), b.ClassBias())

	ha, hb := a.History(), b.History()
	require.Len(t, hb, len(ha))
	for i := range ha {
		assert.Equal(t, ha[i].Loss, hb[i].Loss)
		assert.Equal(t, ha[i].Accuracy, hb[i].Accuracy)
	}
}

func TestFit_InvalidInput(t *testing.T) {
	m := newModel(t, smallConfig())
	opts := drbm.FitOptions{BatchSize: 2, Epochs: 1}

	badLabels, err := drbm.NewDataset([][]float32{{1, 0, 1, 0}, {0, 1, 0, 1}}, []int32{0, 2})
	require.NoError(t, err)
	_, _, err = m.Fit(context.Background(), badLabels, opts)
	assert.True(t, errors.Is(err, drbm.ErrInvalidArgument), "got %v", err)

	negative, err := drbm.NewDataset([][]float32{{1, 0, 1, 0}}, []int32{-1})
	require.NoError(t, err)
	_, _, err = m.Fit(context.Background(), negative, opts)
	assert.True(t, errors.Is(err, drbm.ErrInvalidArgument), "got %v", err)

	narrow, err := drbm.NewDataset([][]float32{{1, 0, 1}}, []int32{0})
	require.NoError(t, err)
	_, _, err = m.Fit(context.Background(), narrow, opts)
	assert.True(t, errors.Is(err, drbm.ErrShapeMismatch), "got %v", err)

	empty, err := drbm.NewDataset(nil, nil)
	require.NoError(t, err)
	_, _, err = m.Fit(context.Background(), empty, opts)
	assert.True(t, errors.Is(err, drbm.ErrInvalidArgument), "got %v", err)

	_, _, err = m.Fit(context.Background(), narrow, drbm.FitOptions{Epochs: -1})
	assert.True(t, errors.Is(err, drbm.ErrInvalidArgument), "got %v", err)

	// Aborted epochs are never recorded.
	assert.Empty(t, m.History())
}

func TestFit_Cancelled(t *testing.T) {
	m := newModel(t, smallConfig())
	ds := randomDataset(t, 8, 4, 2, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := m.Fit(ctx, ds, drbm.FitOptions{BatchSize: 2, Epochs: 2})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Empty(t, m.History())
}

func TestFit_HigherRankSamples(t *testing.T) {
	m := newModel(t, smallConfig())
	examples := []drbm.Example{
		{Features: []float32{1, 0, 0, 1}, Shape: []int{2, 2}, Label: 0},
		{Features: []float32{0, 1, 1, 0}, Shape: []int{2, 2}, Label: 1},
	}
	ds, err := drbm.NewDatasetFromExamples(examples)
	require.NoError(t, err)

	_, _, err = m.Fit(context.Background(), ds, drbm.FitOptions{Epochs: 1})
	require.NoError(t, err)
}

func TestFit_Logs(t *testing.T) {
	var buf bytes.Buffer
	m := newModel(t, smallConfig(), drbm.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	ds := randomDataset(t, 4, 4, 2, 1)

	_, _, err := m.Fit(context.Background(), ds, drbm.FitOptions{BatchSize: 2, Epochs: 1})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "epoch finished")
	assert.Contains(t, buf.String(), "accuracy=")
}

func TestPredict_Idempotent(t *testing.T) {
	m := newModel(t, smallConfig())
	ds := randomDataset(t, 9, 4, 2, 4)
	w := m.Weights()

	first, err := m.Predict(context.Background(), ds)
	require.NoError(t, err)
	second, err := m.Predict(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, w, m.Weights())
	assert.Len(t, first.Predictions, 9)
	assert.Len(t, first.Probabilities, 9)
	assert.GreaterOrEqual(t, first.Accuracy, 0.0)
	assert.LessOrEqual(t, first.Accuracy, 1.0)
	assert.Zero(t, m.Backend().Tape().NumOps())
}

func TestPredictWith_Batches(t *testing.T) {
	m := newModel(t, smallConfig())
	ds := randomDataset(t, 10, 4, 2, 4)

	eval, err := m.PredictWith(context.Background(), ds, drbm.PredictOptions{BatchSize: 4})
	require.NoError(t, err)
	// Last batch holds samples 8 and 9.
	assert.Len(t, eval.Predictions, 2)
	assert.Len(t, eval.Probabilities, 2)

	whole, err := m.Predict(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, whole.Predictions[8:], eval.Predictions)
}

func TestPredict_MatchesPosterior(t *testing.T) {
	m := newModel(t, smallConfig())
	ds := randomDataset(t, 5, 4, 2, 8)

	eval, err := m.Predict(context.Background(), ds)
	require.NoError(t, err)

	rows := make([][]float32, ds.Len())
	hits := 0
	for i := range rows {
		ex, _ := ds.Example(i)
		rows[i] = ex.Features
		if eval.Predictions[i] == ex.Label {
			hits++
		}
	}
	post, err := m.PosteriorRows(rows)
	require.NoError(t, err)
	assert.Equal(t, post.Predictions, eval.Predictions)
	assert.InDelta(t, float64(hits)/5, eval.Accuracy, 1e-12)
}

func TestSetClassParameters(t *testing.T) {
	m := newModel(t, smallConfig())

	assert.True(t, errors.Is(m.SetClassWeights([][]float32{{1, 2, 3}}), drbm.ErrInvalidArgument))
	assert.True(t, errors.Is(m.SetClassWeights([][]float32{{1, 2, 3}, {1, 2}}), drbm.ErrInvalidArgument))
	assert.True(t, errors.Is(m.SetClassWeights([][]float32{{1, 2, 3}, {1, 2, float32(math.NaN())}}), drbm.ErrInvalidArgument))
	assert.True(t, errors.Is(m.SetClassBias([]float32{1}), drbm.ErrInvalidArgument))
	assert.True(t, errors.Is(m.SetClassBias([]float32{1, float32(math.Inf(1))}), drbm.ErrInvalidArgument))
	assert.True(t, errors.Is(m.SetLoss(nil), drbm.ErrInvalidArgument))

	require.NoError(t, m.SetClassWeights([][]float32{{0.1, 0.2, 0.3}, {-0.1, -0.2, -0.3}}))
	require.NoError(t, m.SetClassBias([]float32{0.5, -0.5}))
	assert.Equal(t, [][]float32{{0.1, 0.2, 0.3}, {-0.1, -0.2, -0.3}}, m.ClassWeights())
	assert.Equal(t, []float32{0.5, -0.5}, m.ClassBias())

	// Replaced parameters are the ones the optimizer trains.
	ds := randomDataset(t, 4, 4, 2, 1)
	_, _, err := m.Fit(context.Background(), ds, drbm.FitOptions{Epochs: 1})
	require.NoError(t, err)
	assert.NotEqual(t, []float32{0.5, -0.5}, m.ClassBias())
}

type scaledLoss struct {
	inner drbm.Loss
	calls int
}

func (l *scaledLoss) Forward(scores *drbm.Tensor, targets *drbm.Labels) *drbm.Tensor {
	l.calls++
	return l.inner.Forward(scores, targets).MulScalar(2)
}

func TestWithLoss(t *testing.T) {
	ds := randomDataset(t, 4, 4, 2, 1)
	opts := drbm.FitOptions{Epochs: 1}

	plain := newModel(t, smallConfig())
	base, _, err := plain.Fit(context.Background(), ds, opts)
	require.NoError(t, err)

	loss := &scaledLoss{}
	m := newModel(t, smallConfig(), drbm.WithLoss(loss))
	loss.inner = drbm.NewCrossEntropyLoss(m.Backend())
	scaled, _, err := m.Fit(context.Background(), ds, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, loss.calls)
	assert.InDelta(t, 2*base, scaled, 1e-6)

	// SetLoss swaps back to the plain loss.
	require.NoError(t, m.SetLoss(drbm.NewCrossEntropyLoss(m.Backend())))
	_, _, err = m.Fit(context.Background(), ds, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, loss.calls)
}

func TestReconfigure(t *testing.T) {
	m := newModel(t, smallConfig())
	w := m.Weights()

	assert.True(t, errors.Is(m.Reconfigure(0), drbm.ErrInvalidArgument))
	require.NoError(t, m.Reconfigure(5))

	assert.Equal(t, 5, m.Classes())
	assert.Len(t, m.ClassWeights(), 5)
	assert.Len(t, m.ClassBias(), 5)
	assert.Equal(t, w, m.Weights())
	assert.Len(t, m.Machine().Parameters(), 5)

	post, err := m.PosteriorRows([][]float32{{1, 1, 0, 0}})
	require.NoError(t, err)
	assert.True(t, post.Probabilities.Shape().Equal(tensor.Shape{1, 5}))

	ds, err := drbm.NewDataset([][]float32{{1, 0, 1, 0}}, []int32{4})
	require.NoError(t, err)
	_, _, err = m.Fit(context.Background(), ds, drbm.FitOptions{Epochs: 1})
	require.NoError(t, err)
}

func TestMachineFreeEnergy(t *testing.T) {
	m := newModel(t, smallConfig())
	v, err := tensor.FromSlice([]float32{1, 0, 1, 0, 0, 1, 0, 1}, tensor.Shape{2, 4}, m.Backend())
	require.NoError(t, err)

	energy, err := m.Machine().FreeEnergy(v)
	require.NoError(t, err)
	require.True(t, energy.Shape().Equal(tensor.Shape{2}))
	for _, e := range energy.Data() {
		// All biases are zero and W is small: F ≈ -hidden·log 2.
		assert.InDelta(t, -3*math.Ln2, float64(e), 0.05)
	}
}
