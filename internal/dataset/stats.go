package dataset

import (
	"errors"
	"fmt"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// ErrBadStats reports a statistics table that is not (channels, 2) shaped or
// carries a non-positive standard deviation.
var ErrBadStats = errors.New("dataset: bad normalization statistics")

// Stats holds the per-channel normalization table: one (mean, std) pair per
// input channel. Loaded once per process and shared read-only by every
// dataset split; never duplicated or mutated per split.
type Stats struct {
	Mean []float64
	Std  []float64
}

// Channels returns the number of channels the table covers.
func (s *Stats) Channels() int { return len(s.Mean) }

// LoadStats reads a (channels, 2) .npy array, column 0 the mean and column 1
// the standard deviation of each sensor channel.
func LoadStats(path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open stats %s: %w", path, err)
	}
	defer f.Close()

	var m mat.Dense
	if err := npyio.Read(f, &m); err != nil {
		return nil, fmt.Errorf("dataset: decode stats %s: %w", path, err)
	}
	rows, cols := m.Dims()
	if cols != 2 || rows < 1 {
		return nil, fmt.Errorf("%w: shape (%d, %d), want (channels, 2)", ErrBadStats, rows, cols)
	}

	s := &Stats{
		Mean: make([]float64, rows),
		Std:  make([]float64, rows),
	}
	for c := 0; c < rows; c++ {
		s.Mean[c] = m.At(c, 0)
		s.Std[c] = m.At(c, 1)
		if s.Std[c] <= 0 {
			return nil, fmt.Errorf("%w: channel %d has std %v", ErrBadStats, c, s.Std[c])
		}
	}
	return s, nil
}
