// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package drbm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/born-ml/drbm/internal/data"
)

// PredictOptions controls evaluation.
type PredictOptions struct {
	// BatchSize splits the dataset into chunks; 0 evaluates it as one batch.
	BatchSize int
}

// Evaluation is the result of Predict.
type Evaluation struct {
	// Accuracy is the mean of the per-batch accuracies.
	Accuracy float64
	// Probabilities holds P(y|v) of the last evaluated batch.
	Probabilities [][]float32
	// Predictions holds the predicted classes of the last evaluated batch.
	Predictions []int32
}

// Predict evaluates the model on ds as a single batch, in dataset order,
// without computing gradients or touching the parameters.
func (m *Model) Predict(ctx context.Context, ds Dataset) (*Evaluation, error) {
	return m.PredictWith(ctx, ds, PredictOptions{})
}

// PredictWith is Predict with explicit options. With several batches the
// returned probabilities and predictions belong to the last one.
func (m *Model) PredictWith(ctx context.Context, ds Dataset, opts PredictOptions) (*Evaluation, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "empty dataset")
	}
	loader, err := data.NewLoader(ds, data.LoaderOptions{BatchSize: opts.BatchSize})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}

	tape := m.backend.Tape()
	if tape.IsRecording() {
		tape.StopRecording()
		defer tape.StartRecording()
	}

	it := loader.Iter(ctx)
	defer it.Close()

	var (
		eval    Evaluation
		batches int
	)
	for batch, ok := it.Next(); ok; batch, ok = it.Next() {
		samples, _, err := m.batchTensors(batch)
		if err != nil {
			return nil, errors.Wrapf(err, "batch %d", batches+1)
		}
		posterior, err := m.Posterior(samples)
		if err != nil {
			return nil, errors.Wrapf(err, "batch %d", batches+1)
		}

		eval.Accuracy += batchAccuracy(posterior.Predictions, batch.Labels)
		eval.Probabilities = posterior.Rows()
		eval.Predictions = posterior.Predictions
		batches++
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	eval.Accuracy /= float64(batches)

	m.logger.Info("prediction finished", "samples", ds.Len(), "batches", batches, "accuracy", eval.Accuracy)
	return &eval, nil
}
