// Package transientvae is the public surface of the transient VAE library:
// the 1-D convolutional variational autoencoder, its ELBO loss, and the
// normalizing dataset loader.
package transientvae

import (
	"github.com/sensorlab/transientvae/internal/dataset"
	"github.com/sensorlab/transientvae/internal/loss"
	"github.com/sensorlab/transientvae/internal/vae"
)

// Re-export the user-facing types.
type (
	VAE1D       = vae.VAE1D
	Config      = vae.Config
	ELBO        = loss.ELBO
	Diagnostics = loss.Diagnostics

	TransientDataset = dataset.TransientDataset
	Stats            = dataset.Stats
	Splits           = dataset.Splits
	Loader           = dataset.Loader
	Batch            = dataset.Batch
	LoaderOption     = dataset.Option
)

// Construction errors and data errors callers may want to test with
// errors.Is.
var (
	ErrBadSize        = vae.ErrBadSize
	ErrBadGeometry    = vae.ErrBadGeometry
	ErrShapeMismatch  = vae.ErrShapeMismatch
	ErrSampleNotFound = dataset.ErrSampleNotFound
	ErrBadStats       = dataset.ErrBadStats
)

// NewVAE1D builds a model with the standard hyperparameters for the given
// geometry. size must be a power of two >= 8.
func NewVAE1D(size, channels, latent int) (*VAE1D, error) {
	cfg := vae.DefaultConfig(size, channels)
	if latent > 0 {
		cfg.Latent = latent
	}
	return vae.New(cfg)
}

// NewVAE1DFromConfig builds a model from an explicit configuration.
func NewVAE1DFromConfig(cfg Config) (*VAE1D, error) {
	return vae.New(cfg)
}

// NewELBO creates the negative-ELBO loss with the given KL weight
// (beta = 1 for the standard objective).
func NewELBO(beta float64) *ELBO {
	return loss.NewELBO(beta)
}

// LoadStats reads the shared per-channel (mean, std) table.
func LoadStats(path string) (*Stats, error) {
	return dataset.LoadStats(path)
}

// NewDataset indexes one split directory against a shared statistics table.
func NewDataset(root string, stats *Stats) (*TransientDataset, error) {
	return dataset.New(root, stats)
}

// LoadSplits builds the train/val/test splits of the standard layout over
// one shared statistics table.
func LoadSplits(root, statsPath string) (*Splits, error) {
	return dataset.LoadSplits(root, statsPath)
}

// NewLoader creates a batched iterator over a dataset split.
func NewLoader(ds *TransientDataset, batchSize int, opts ...LoaderOption) (*Loader, error) {
	return dataset.NewLoader(ds, batchSize, opts...)
}

// WithShuffle enables deterministic shuffling on a Loader.
func WithShuffle(seed int64) LoaderOption {
	return dataset.WithShuffle(seed)
}

// WithWorkers bounds concurrent sample fetches per batch.
func WithWorkers(n int) LoaderOption {
	return dataset.WithWorkers(n)
}
