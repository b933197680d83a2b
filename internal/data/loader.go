package data

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/pkg/errors"
)

// Batch is a mini-batch of flattened samples.
type Batch struct {
	Features []float32 // row-major [Size, Width]
	Labels   []int32   // [Size]
	Size     int
	Width    int
}

// Row returns sample i of the batch without copying.
func (b *Batch) Row(i int) []float32 {
	return b.Features[i*b.Width : (i+1)*b.Width]
}

// LoaderOptions configures batching.
type LoaderOptions struct {
	// BatchSize is the number of samples per batch; 0 means the whole dataset.
	BatchSize int
	// Shuffle draws a new permutation from Rand for every iterator.
	Shuffle bool
	// Prefetch is the number of batches assembled ahead by a background
	// goroutine; 0 assembles batches on the caller's goroutine.
	Prefetch int
	// Rand is the source of shuffling permutations. Required when Shuffle is set.
	Rand *rand.Rand
}

// Loader splits a Dataset into batches, once per call to Iter.
type Loader struct {
	ds   Dataset
	opts LoaderOptions
}

// NewLoader creates a loader over ds.
func NewLoader(ds Dataset, opts LoaderOptions) (*Loader, error) {
	switch {
	case ds == nil:
		return nil, errors.New("data: nil dataset")
	case opts.BatchSize < 0:
		return nil, errors.Errorf("data: negative batch size %d", opts.BatchSize)
	case opts.Prefetch < 0:
		return nil, errors.Errorf("data: negative prefetch %d", opts.Prefetch)
	case opts.Shuffle && opts.Rand == nil:
		return nil, errors.New("data: shuffle requires a random source")
	}
	return &Loader{ds: ds, opts: opts}, nil
}

// BatchSize returns the effective batch size.
func (l *Loader) BatchSize() int {
	n := l.ds.Len()
	if l.opts.BatchSize == 0 || l.opts.BatchSize > n {
		return n
	}
	return l.opts.BatchSize
}

// NumBatches returns the number of batches per epoch. The last batch may be
// smaller than BatchSize.
func (l *Loader) NumBatches() int {
	n := l.ds.Len()
	if n == 0 {
		return 0
	}
	bs := l.BatchSize()
	return (n + bs - 1) / bs
}

// Iter starts a new pass over the dataset. The permutation is drawn before
// Iter returns, so the batch order depends only on the random source.
func (l *Loader) Iter(ctx context.Context) *Iterator {
	n := l.ds.Len()
	var order []int
	if l.opts.Shuffle {
		order = l.opts.Rand.Perm(n)
	} else {
		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
	}

	it := &Iterator{
		loader: l,
		order:  order,
		size:   l.BatchSize(),
		parent: ctx,
	}
	if l.opts.Prefetch > 0 && n > 0 {
		it.startPrefetch(ctx, l.opts.Prefetch)
	}
	return it
}

// build assembles the samples at idx into one batch.
func (l *Loader) build(idx []int) (*Batch, error) {
	b := &Batch{Size: len(idx), Labels: make([]int32, len(idx))}
	for j, i := range idx {
		ex, err := l.ds.Example(i)
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", i)
		}
		if j == 0 {
			b.Width = ex.Width()
			b.Features = make([]float32, 0, len(idx)*b.Width)
		} else if ex.Width() != b.Width {
			return nil, errors.Wrapf(ErrInconsistentWidth, "sample %d has %d features, batch has %d", i, ex.Width(), b.Width)
		}
		b.Features = append(b.Features, ex.Features...)
		b.Labels[j] = ex.Label
	}
	return b, nil
}

type result struct {
	batch *Batch
	err   error
}

// Iterator yields the batches of one epoch.
type Iterator struct {
	loader *Loader
	order  []int
	size   int
	pos    int

	parent context.Context
	ch     chan result
	cancel context.CancelFunc
	wg     sync.WaitGroup

	err    error
	done   bool
	closed bool
}

func (it *Iterator) next() (*Batch, error) {
	end := min(it.pos+it.size, len(it.order))
	b, err := it.loader.build(it.order[it.pos:end])
	it.pos = end
	return b, err
}

func (it *Iterator) startPrefetch(ctx context.Context, depth int) {
	ctx, it.cancel = context.WithCancel(ctx)
	it.ch = make(chan result, depth)

	it.wg.Add(1)
	go func() {
		defer it.wg.Done()
		defer close(it.ch)
		for it.pos < len(it.order) {
			b, err := it.next()
			select {
			case it.ch <- result{batch: b, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

// Next returns the next batch, or false when the epoch is exhausted, the
// context is cancelled or a sample failed to load. Check Err afterwards.
func (it *Iterator) Next() (*Batch, bool) {
	if it.done || it.err != nil || it.closed {
		return nil, false
	}
	if err := it.parent.Err(); err != nil {
		it.fail(err)
		return nil, false
	}

	if it.ch != nil {
		select {
		case r, ok := <-it.ch:
			if !ok {
				if err := it.parent.Err(); err != nil {
					it.fail(err)
				} else {
					it.done = true
				}
				return nil, false
			}
			if r.err != nil {
				it.fail(r.err)
				return nil, false
			}
			return r.batch, true
		case <-it.parent.Done():
			it.fail(it.parent.Err())
			return nil, false
		}
	}

	if it.pos >= len(it.order) {
		it.done = true
		return nil, false
	}
	b, err := it.next()
	if err != nil {
		it.fail(err)
		return nil, false
	}
	return b, true
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.Close()
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Close stops the prefetch goroutine and waits for it to exit. It is safe to
// call Close more than once.
func (it *Iterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	if it.cancel != nil {
		it.cancel()
		it.wg.Wait()
	}
}
