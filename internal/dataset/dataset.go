// Package dataset maps a directory tree of class-labelled transient samples
// to normalized tensors. Layout: one subdirectory per class under the split
// root, one .npy file of shape (channels, length) per sample.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Ext is the sample file extension.
const Ext = ".npy"

var (
	// ErrSampleNotFound reports a lookup-by-name with no matching sample.
	ErrSampleNotFound = errors.New("dataset: sample not found")

	// ErrShapeMismatch reports a sample whose channel count disagrees with
	// the normalization table.
	ErrShapeMismatch = errors.New("dataset: sample shape mismatch")
)

type entry struct {
	name  string
	class int
}

// TransientDataset is an order-stable index over one split of the transient
// corpus. The index and the statistics table are immutable after
// construction, so Get is safe to call concurrently for distinct indices.
type TransientDataset struct {
	root    string
	stats   *Stats
	classes []string
	entries []entry
	byName  map[string]int
}

// New enumerates the class subdirectories of root (sorted, for a
// deterministic class order) and the sample files within each, building a
// flat index of (sample, class) pairs. stats is shared read-only with every
// other split.
func New(root string, stats *Stats) (*TransientDataset, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("dataset: read root %s: %w", root, err)
	}

	d := &TransientDataset{
		root:   root,
		stats:  stats,
		byName: make(map[string]int),
	}
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		d.classes = append(d.classes, dir.Name())
	}
	sort.Strings(d.classes)

	for ci, class := range d.classes {
		files, err := os.ReadDir(filepath.Join(root, class))
		if err != nil {
			return nil, fmt.Errorf("dataset: read class %s: %w", class, err)
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), Ext) {
				continue
			}
			names = append(names, f.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			d.byName[name] = len(d.entries)
			d.entries = append(d.entries, entry{name: name, class: ci})
		}
	}
	return d, nil
}

// Len returns the total number of indexed samples.
func (d *TransientDataset) Len() int { return len(d.entries) }

// Classes returns the sorted class labels.
func (d *TransientDataset) Classes() []string {
	return append([]string(nil), d.classes...)
}

// Get loads sample i from disk, normalizes each channel to (raw - mean) /
// std with the shared statistics, and returns the flat [channel][length]
// tensor with the sample's class index. Missing or malformed files surface
// as errors; the caller decides whether to skip or abort.
func (d *TransientDataset) Get(i int) ([]float64, int, error) {
	if i < 0 || i >= len(d.entries) {
		return nil, 0, fmt.Errorf("%w: index %d of %d", ErrSampleNotFound, i, len(d.entries))
	}
	e := d.entries[i]
	path := filepath.Join(d.root, d.classes[e.class], e.name)

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("dataset: open sample %s: %w", path, err)
	}
	defer f.Close()

	var m mat.Dense
	if err := npyio.Read(f, &m); err != nil {
		return nil, 0, fmt.Errorf("dataset: decode sample %s: %w", path, err)
	}
	channels, length := m.Dims()
	if channels != d.stats.Channels() {
		return nil, 0, fmt.Errorf("%w: sample %s has %d channels, statistics cover %d",
			ErrShapeMismatch, e.name, channels, d.stats.Channels())
	}

	sample := make([]float64, channels*length)
	for c := 0; c < channels; c++ {
		row := sample[c*length : (c+1)*length]
		copy(row, m.RawRowView(c))
		floats.AddConst(-d.stats.Mean[c], row)
		floats.Scale(1/d.stats.Std[c], row)
	}
	return sample, e.class, nil
}

// IndexOf returns the position of a sample by file name, appending the .npy
// extension when absent.
func (d *TransientDataset) IndexOf(name string) (int, error) {
	if !strings.HasSuffix(name, Ext) {
		name += Ext
	}
	i, ok := d.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSampleNotFound, name)
	}
	return i, nil
}

// Splits bundles the three dataset splits of the on-disk layout:
// root/train/train, root/train/val and root/test.
type Splits struct {
	Train *TransientDataset
	Val   *TransientDataset
	Test  *TransientDataset
}

// LoadSplits loads the statistics table once and builds all three splits
// over it.
func LoadSplits(root, statsPath string) (*Splits, error) {
	stats, err := LoadStats(statsPath)
	if err != nil {
		return nil, err
	}
	train, err := New(filepath.Join(root, "train", "train"), stats)
	if err != nil {
		return nil, err
	}
	val, err := New(filepath.Join(root, "train", "val"), stats)
	if err != nil {
		return nil, err
	}
	test, err := New(filepath.Join(root, "test"), stats)
	if err != nil {
		return nil, err
	}
	return &Splits{Train: train, Val: val, Test: test}, nil
}
