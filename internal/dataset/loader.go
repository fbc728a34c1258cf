package dataset

import (
	"fmt"
	"io"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Batch is one batch of normalized samples, flattened row-major as
// [Size][channels][length], with the class index of each sample.
type Batch struct {
	Data   []float64
	Labels []int
	Size   int
}

// Loader iterates a dataset in batches, optionally shuffled, fetching the
// samples of a batch concurrently. Each worker reads a distinct index, which
// the dataset contract allows.
type Loader struct {
	ds        *TransientDataset
	batchSize int
	workers   int
	shuffle   bool
	rng       *rand.Rand

	order []int
	pos   int
}

// Option configures a Loader.
type Option func(*Loader)

// WithShuffle randomizes sample order, reseeded deterministically from seed
// on every Reset.
func WithShuffle(seed int64) Option {
	return func(l *Loader) {
		l.shuffle = true
		l.rng = rand.New(rand.NewSource(seed))
	}
}

// WithWorkers bounds the number of concurrent sample fetches per batch.
// Default is 4.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// NewLoader creates a batched iterator over the dataset.
func NewLoader(ds *TransientDataset, batchSize int, opts ...Option) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be positive, got %d", batchSize)
	}
	l := &Loader{
		ds:        ds,
		batchSize: batchSize,
		workers:   4,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.order = make([]int, ds.Len())
	for i := range l.order {
		l.order[i] = i
	}
	l.reshuffle()
	return l, nil
}

func (l *Loader) reshuffle() {
	if !l.shuffle {
		return
	}
	l.rng.Shuffle(len(l.order), func(i, j int) {
		l.order[i], l.order[j] = l.order[j], l.order[i]
	})
}

// Next assembles the next batch, or io.EOF once the dataset is exhausted.
// The final batch of a pass may be short.
func (l *Loader) Next() (*Batch, error) {
	if l.pos >= len(l.order) {
		return nil, io.EOF
	}
	end := l.pos + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	indices := l.order[l.pos:end]
	l.pos = end

	samples := make([][]float64, len(indices))
	labels := make([]int, len(indices))

	var g errgroup.Group
	g.SetLimit(l.workers)
	for slot, idx := range indices {
		slot, idx := slot, idx
		g.Go(func() error {
			sample, class, err := l.ds.Get(idx)
			if err != nil {
				return err
			}
			samples[slot] = sample
			labels[slot] = class
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &Batch{
		Labels: labels,
		Size:   len(indices),
	}
	if len(samples) > 0 {
		batch.Data = make([]float64, 0, len(samples)*len(samples[0]))
		for _, s := range samples {
			batch.Data = append(batch.Data, s...)
		}
	}
	return batch, nil
}

// Reset rewinds the loader and reshuffles when shuffling is enabled.
func (l *Loader) Reset() {
	l.pos = 0
	l.reshuffle()
}
