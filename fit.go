// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package drbm

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/born-ml/drbm/internal/autodiff"
	"github.com/born-ml/drbm/internal/data"
	"github.com/born-ml/drbm/internal/history"
	"github.com/born-ml/drbm/internal/tensor"
)

// FitOptions controls a training run.
type FitOptions struct {
	// BatchSize is the number of samples per update; 0 uses the whole dataset.
	BatchSize int
	// Epochs is the number of passes over the dataset. Every epoch runs.
	Epochs int
	// Shuffle draws a new batch order every epoch from the model's seeded
	// random source.
	Shuffle bool
	// Prefetch is the number of batches assembled ahead in the background.
	Prefetch int
}

// DefaultFitOptions returns 10 shuffled epochs of 128-sample batches.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		BatchSize: 128,
		Epochs:    10,
		Shuffle:   true,
	}
}

// Fit trains the model on ds with one SGD step per batch and returns the
// loss and accuracy of the last epoch. W, b, U and c are updated together;
// the visible bias gets no gradient on this path.
//
// One history record is appended per finished epoch. An error aborts the run
// and the unfinished epoch is not recorded. ctx is checked between batches.
func (m *Model) Fit(ctx context.Context, ds Dataset, opts FitOptions) (loss, accuracy float64, err error) {
	if opts.Epochs < 0 {
		return 0, 0, errors.Wrapf(ErrInvalidArgument, "epochs must be non-negative, got %d", opts.Epochs)
	}
	if opts.Epochs == 0 {
		return 0, 0, nil
	}
	if ds == nil || ds.Len() == 0 {
		return 0, 0, errors.Wrap(ErrInvalidArgument, "empty dataset")
	}

	loader, err := data.NewLoader(ds, data.LoaderOptions{
		BatchSize: opts.BatchSize,
		Shuffle:   opts.Shuffle,
		Prefetch:  opts.Prefetch,
		Rand:      m.rng,
	})
	if err != nil {
		return 0, 0, errors.Wrap(ErrInvalidArgument, err.Error())
	}

	tape := m.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	runID := uuid.New()
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		start := time.Now()

		loss, accuracy, err = m.fitEpoch(ctx, loader)
		if err != nil {
			return 0, 0, errors.Wrapf(err, "epoch %d", epoch)
		}

		record := history.Record{
			RunID:    runID,
			Epoch:    epoch,
			Loss:     loss,
			Accuracy: accuracy,
			Elapsed:  time.Since(start),
		}
		m.history.Append(record)
		if m.recorder != nil {
			m.recorder.Append(record)
		}

		m.logger.Info("epoch finished",
			"run", runID,
			"epoch", epoch,
			"epochs", opts.Epochs,
			"loss", loss,
			"accuracy", accuracy,
			"elapsed", record.Elapsed,
		)
	}
	return loss, accuracy, nil
}

func (m *Model) fitEpoch(ctx context.Context, loader *data.Loader) (loss, accuracy float64, err error) {
	it := loader.Iter(ctx)
	defer it.Close()

	batches := 0
	for batch, ok := it.Next(); ok; batch, ok = it.Next() {
		batchLoss, batchAcc, err := m.fitBatch(batch)
		if err != nil {
			return 0, 0, errors.Wrapf(err, "batch %d", batches+1)
		}
		loss += batchLoss
		accuracy += batchAcc
		batches++
	}
	if err := it.Err(); err != nil {
		return 0, 0, err
	}
	if batches == 0 {
		return 0, 0, errors.Wrap(ErrInvalidArgument, "no batches")
	}

	return loss / float64(batches), accuracy / float64(batches), nil
}

// fitBatch runs posterior, loss, backward and one optimizer step.
func (m *Model) fitBatch(batch *data.Batch) (loss, accuracy float64, err error) {
	tape := m.backend.Tape()
	defer tape.Clear()

	samples, labels, err := m.batchTensors(batch)
	if err != nil {
		return 0, 0, err
	}

	posterior, err := m.Posterior(samples)
	if err != nil {
		return 0, 0, err
	}

	cost := m.loss.Forward(posterior.Probabilities, labels)
	loss = float64(cost.Item())
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, 0, errors.Wrapf(ErrNumerical, "loss is %v", loss)
	}

	opt := m.machine.Optimizer()
	opt.ZeroGrad()
	grads := autodiff.Backward(cost, m.backend)
	opt.Step(grads)

	return loss, batchAccuracy(posterior.Predictions, batch.Labels), nil
}

// batchTensors places a batch on the model's backend after checking its
// width and labels.
func (m *Model) batchTensors(batch *data.Batch) (*Tensor, *Labels, error) {
	if batch.Width != m.cfg.Visible {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "samples have %d features, want %d", batch.Width, m.cfg.Visible)
	}
	for i, y := range batch.Labels {
		if y < 0 || int(y) >= m.cfg.Classes {
			return nil, nil, errors.Wrapf(ErrInvalidArgument, "label %d of sample %d outside [0, %d)", y, i, m.cfg.Classes)
		}
	}

	samples, err := tensor.FromSlice(batch.Features, tensor.Shape{batch.Size, batch.Width}, m.backend)
	if err != nil {
		return nil, nil, errors.Wrap(ErrShapeMismatch, err.Error())
	}
	labels, err := tensor.FromSlice(batch.Labels, tensor.Shape{batch.Size}, m.backend)
	if err != nil {
		return nil, nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}
	return samples, labels, nil
}

func batchAccuracy(preds, labels []int32) float64 {
	if len(labels) == 0 {
		return 0
	}
	hits := 0
	for i, y := range labels {
		if preds[i] == y {
			hits++
		}
	}
	return float64(hits) / float64(len(labels))
}
