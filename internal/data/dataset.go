// Package data provides labelled datasets and the per-epoch batch loader used
// by the supervised trainer.
//
// A Dataset yields flat feature vectors with an integer class label. A Loader
// turns it into a finite, non-restartable sequence of batches; callers create
// a new iterator for every epoch:
//
//	loader, _ := data.NewLoader(ds, data.LoaderOptions{BatchSize: 32, Shuffle: true, Rand: rng})
//	for epoch := 0; epoch < epochs; epoch++ {
//	    it := loader.Iter(ctx)
//	    for batch, ok := it.Next(); ok; batch, ok = it.Next() {
//	        ...
//	    }
//	    if err := it.Err(); err != nil {
//	        return err
//	    }
//	}
package data

import (
	"github.com/pkg/errors"
)

var (
	// ErrIndexOutOfRange is returned by Example for an invalid index.
	ErrIndexOutOfRange = errors.New("data: index out of range")
	// ErrInconsistentWidth is returned when samples of one dataset differ in size.
	ErrInconsistentWidth = errors.New("data: inconsistent sample width")
	// ErrMalformed is returned for unreadable dataset files.
	ErrMalformed = errors.New("data: malformed input")
)

// Example is one labelled sample.
type Example struct {
	// Features holds the sample in row-major order.
	Features []float32
	// Shape is the sample's original shape; nil means a flat vector.
	Shape []int
	// Label is the class index.
	Label int32
}

// Width returns the number of features after flattening.
func (e Example) Width() int {
	return len(e.Features)
}

// Dataset is a random-access collection of labelled samples.
type Dataset interface {
	// Len returns the number of samples.
	Len() int
	// Example returns sample i.
	Example(i int) (Example, error)
}

// InMemory is a Dataset backed by slices.
type InMemory struct {
	examples []Example
	width    int
}

// NewInMemory creates a dataset from flat feature rows and labels.
// The rows are not copied.
func NewInMemory(features [][]float32, labels []int32) (*InMemory, error) {
	if len(features) != len(labels) {
		return nil, errors.Errorf("data: %d samples but %d labels", len(features), len(labels))
	}
	examples := make([]Example, len(features))
	for i := range features {
		examples[i] = Example{Features: features[i], Label: labels[i]}
	}
	return FromExamples(examples)
}

// FromExamples creates a dataset from prepared examples. All examples must
// flatten to the same width.
func FromExamples(examples []Example) (*InMemory, error) {
	ds := &InMemory{examples: examples}
	for i, ex := range examples {
		if ex.Shape != nil && shapeSize(ex.Shape) != len(ex.Features) {
			return nil, errors.Wrapf(ErrInconsistentWidth, "sample %d: shape %v holds %d features, got %d",
				i, ex.Shape, shapeSize(ex.Shape), len(ex.Features))
		}
		if i == 0 {
			ds.width = ex.Width()
			continue
		}
		if ex.Width() != ds.width {
			return nil, errors.Wrapf(ErrInconsistentWidth, "sample %d has %d features, want %d", i, ex.Width(), ds.width)
		}
	}
	return ds, nil
}

// Len returns the number of samples.
func (d *InMemory) Len() int {
	return len(d.examples)
}

// Width returns the flattened sample width, 0 for an empty dataset.
func (d *InMemory) Width() int {
	return d.width
}

// Example returns sample i.
func (d *InMemory) Example(i int) (Example, error) {
	if i < 0 || i >= len(d.examples) {
		return Example{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, len %d", i, len(d.examples))
	}
	return d.examples[i], nil
}

// Labels returns a copy of every label in order.
func (d *InMemory) Labels() []int32 {
	out := make([]int32, len(d.examples))
	for i, ex := range d.examples {
		out[i] = ex.Label
	}
	return out
}

// Subset returns the first n samples, or the whole dataset when n <= 0 or
// n >= Len().
func (d *InMemory) Subset(n int) *InMemory {
	if n <= 0 || n >= len(d.examples) {
		return d
	}
	return &InMemory{examples: d.examples[:n], width: d.width}
}

func shapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
