package layer

import (
	"fmt"
	"math"

	"github.com/sensorlab/transientvae/internal/activations"
)

// BatchNorm1D implements 1-D batch normalization. In training mode it
// normalizes with statistics computed across the batch and spatial
// dimensions of each channel while tracking running estimates; in inference
// mode it normalizes with the running estimates. The stage activation runs
// after normalization.
type BatchNorm1D struct {
	numFeatures int
	eps         float64
	momentum    float64

	training bool

	// Learnable parameters, contiguous gamma + beta.
	params []float64
	gamma  []float64
	beta   []float64

	runningMean []float64
	runningVar  []float64

	act activations.Activation

	outputBuf []float64
	meanBuf   []float64
	stdBuf    []float64
}

// NewBatchNorm1D creates a batch-normalization layer over numFeatures
// channels. Starts in training mode with unit running variance.
func NewBatchNorm1D(numFeatures int, eps, momentum float64, act activations.Activation) *BatchNorm1D {
	b := &BatchNorm1D{
		numFeatures: numFeatures,
		eps:         eps,
		momentum:    momentum,
		training:    true,
		params:      make([]float64, numFeatures*2),
		runningMean: make([]float64, numFeatures),
		runningVar:  make([]float64, numFeatures),
		act:         act,
		meanBuf:     make([]float64, numFeatures),
		stdBuf:      make([]float64, numFeatures),
	}
	b.gamma = b.params[:numFeatures]
	b.beta = b.params[numFeatures:]
	for i := 0; i < numFeatures; i++ {
		b.gamma[i] = 1
		b.runningVar[i] = 1
	}
	return b
}

// ForwardBatch normalizes a batch of [numFeatures, length] samples.
func (b *BatchNorm1D) ForwardBatch(x []float64, batchSize int) []float64 {
	if batchSize <= 0 || len(x)%(batchSize*b.numFeatures) != 0 {
		panic(fmt.Sprintf("BatchNorm1D: input length %d not divisible into %d samples of %d channels",
			len(x), batchSize, b.numFeatures))
	}
	spatial := len(x) / (batchSize * b.numFeatures)
	total := len(x)

	if len(b.outputBuf) < total {
		b.outputBuf = make([]float64, total)
	}
	out := b.outputBuf[:total]

	if b.training {
		m := float64(batchSize * spatial)
		for f := 0; f < b.numFeatures; f++ {
			sum := 0.0
			for i := 0; i < batchSize; i++ {
				base := i*b.numFeatures*spatial + f*spatial
				for s := 0; s < spatial; s++ {
					sum += x[base+s]
				}
			}
			mean := sum / m

			sumSq := 0.0
			for i := 0; i < batchSize; i++ {
				base := i*b.numFeatures*spatial + f*spatial
				for s := 0; s < spatial; s++ {
					diff := x[base+s] - mean
					sumSq += diff * diff
				}
			}
			variance := sumSq / m

			b.meanBuf[f] = mean
			b.stdBuf[f] = math.Sqrt(variance + b.eps)
			b.runningMean[f] = (1-b.momentum)*b.runningMean[f] + b.momentum*mean
			b.runningVar[f] = (1-b.momentum)*b.runningVar[f] + b.momentum*variance
		}
	} else {
		for f := 0; f < b.numFeatures; f++ {
			b.meanBuf[f] = b.runningMean[f]
			b.stdBuf[f] = math.Sqrt(b.runningVar[f] + b.eps)
		}
	}

	for i := 0; i < batchSize; i++ {
		for f := 0; f < b.numFeatures; f++ {
			base := i*b.numFeatures*spatial + f*spatial
			mean := b.meanBuf[f]
			std := b.stdBuf[f]
			gamma := b.gamma[f]
			beta := b.beta[f]
			for s := 0; s < spatial; s++ {
				norm := (x[base+s] - mean) / std
				out[base+s] = b.act.Activate(gamma*norm + beta)
			}
		}
	}
	return out
}

// Params returns gamma then beta, contiguous.
func (b *BatchNorm1D) Params() []float64 { return b.params }

// SetParams updates gamma and beta from a flattened slice.
func (b *BatchNorm1D) SetParams(params []float64) {
	copy(b.params, params)
}

// Accept dispatches to the initializer's normalization rule.
func (b *BatchNorm1D) Accept(init Initializer) {
	init.VisitBatchNorm(b)
}

// InSize returns the number of channels.
func (b *BatchNorm1D) InSize() int { return b.numFeatures }

// OutSize returns the number of channels.
func (b *BatchNorm1D) OutSize() int { return b.numFeatures }

// SetTraining switches between batch and running statistics.
func (b *BatchNorm1D) SetTraining(training bool) { b.training = training }

// IsTraining reports whether batch statistics are in use.
func (b *BatchNorm1D) IsTraining() bool { return b.training }

// RunningMean returns the tracked per-channel mean estimates.
func (b *BatchNorm1D) RunningMean() []float64 { return b.runningMean }

// RunningVar returns the tracked per-channel variance estimates.
func (b *BatchNorm1D) RunningVar() []float64 { return b.runningVar }
