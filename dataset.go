// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package drbm

import (
	"github.com/born-ml/drbm/internal/data"
	"github.com/born-ml/drbm/internal/history"
)

// Dataset is a random-access collection of labelled samples. Samples of
// higher rank are flattened to their number of features.
type Dataset = data.Dataset

// Example is one labelled sample.
type Example = data.Example

// InMemory is a Dataset backed by slices.
type InMemory = data.InMemory

// CSVOptions describes the layout of a labelled CSV file.
type CSVOptions = data.CSVOptions

// TokenFeaturizer turns text into binary bag-of-token visible vectors.
type TokenFeaturizer = data.TokenFeaturizer

// Record is the telemetry of one finished epoch.
type Record = history.Record

// Recorder receives one Record per finished epoch.
type Recorder = history.Recorder

// NewDataset creates an in-memory dataset from feature rows and labels.
func NewDataset(features [][]float32, labels []int32) (*InMemory, error) {
	return data.NewInMemory(features, labels)
}

// NewDatasetFromExamples creates an in-memory dataset from examples that may
// carry a multi-dimensional shape.
func NewDatasetFromExamples(examples []Example) (*InMemory, error) {
	return data.FromExamples(examples)
}

// LoadCSV reads a labelled CSV file.
func LoadCSV(path string, opts CSVOptions) (*InMemory, error) {
	return data.LoadCSVFile(path, opts)
}

// LoadIDX reads an IDX image file (such as MNIST) and its label file.
// Pixels are scaled to [0, 1].
func LoadIDX(imagesPath, labelsPath string, maxSamples int) (*InMemory, error) {
	return data.LoadIDX(imagesPath, labelsPath, maxSamples)
}

// NewTokenFeaturizer loads a tiktoken encoding and hashes its tokens into
// width visible units. An empty name selects cl100k_base.
func NewTokenFeaturizer(encoding string, width int) (*TokenFeaturizer, error) {
	return data.NewTokenFeaturizer(encoding, width)
}

// NewTextDataset featurizes labelled texts.
func NewTextDataset(f *TokenFeaturizer, texts []string, labels []int32) (*InMemory, error) {
	return data.NewTextDataset(f, texts, labels)
}
