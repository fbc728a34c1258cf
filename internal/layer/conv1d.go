package layer

import (
	"fmt"

	"github.com/sensorlab/transientvae/internal/activations"
)

// Conv1D implements a strided 1-D convolutional layer.
// Uses direct convolution over contiguous slices rather than a matrix
// library, for cache locality.
type Conv1D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	// Weights: [outChannels, inChannels, kernelSize] flattened row-major.
	weights []float64
	biases  []float64

	act activations.Activation

	outputBuf []float64
}

// NewConv1D creates a 1-D convolutional layer. Weights start at zero; the
// model builder runs an Initializer over the finished network.
func NewConv1D(inChannels, outChannels, kernelSize, stride, padding int,
	act activations.Activation) *Conv1D {

	return &Conv1D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weights:     make([]float64, outChannels*inChannels*kernelSize),
		biases:      make([]float64, outChannels),
		act:         act,
	}
}

// ForwardBatch convolves a batch of [inChannels, length] samples, producing
// [outChannels, outLength] per sample, with the layer's activation applied.
func (c *Conv1D) ForwardBatch(x []float64, batchSize int) []float64 {
	if batchSize <= 0 || len(x)%(batchSize*c.inChannels) != 0 {
		panic(fmt.Sprintf("Conv1D: input length %d not divisible into %d samples of %d channels",
			len(x), batchSize, c.inChannels))
	}
	inLen := len(x) / (batchSize * c.inChannels)
	outLen := ConvOutLen(inLen, c.kernelSize, c.stride, c.padding)
	if outLen <= 0 {
		panic(fmt.Sprintf("Conv1D: input length %d too small for kernel %d", inLen, c.kernelSize))
	}

	required := batchSize * c.outChannels * outLen
	if len(c.outputBuf) < required {
		c.outputBuf = make([]float64, required)
	}
	out := c.outputBuf[:required]

	icWeightStride := c.kernelSize
	ocWeightStride := c.inChannels * icWeightStride

	for b := 0; b < batchSize; b++ {
		inBase := b * c.inChannels * inLen
		outBase := b * c.outChannels * outLen
		for oc := 0; oc < c.outChannels; oc++ {
			ocWeightBase := oc * ocWeightStride
			ocOutBase := outBase + oc*outLen
			for ol := 0; ol < outLen; ol++ {
				sum := c.biases[oc]
				for ic := 0; ic < c.inChannels; ic++ {
					icWeightBase := ocWeightBase + ic*icWeightStride
					icInBase := inBase + ic*inLen
					for k := 0; k < c.kernelSize; k++ {
						il := ol*c.stride + k - c.padding
						if il >= 0 && il < inLen {
							sum += c.weights[icWeightBase+k] * x[icInBase+il]
						}
					}
				}
				out[ocOutBase+ol] = c.act.Activate(sum)
			}
		}
	}
	return out
}

// Params returns weights then biases, flattened.
func (c *Conv1D) Params() []float64 {
	params := make([]float64, len(c.weights)+len(c.biases))
	copy(params, c.weights)
	copy(params[len(c.weights):], c.biases)
	return params
}

// SetParams updates weights and biases from a flattened slice.
func (c *Conv1D) SetParams(params []float64) {
	copy(c.weights, params[:len(c.weights)])
	copy(c.biases, params[len(c.weights):])
}

// Accept dispatches to the initializer's convolution rule.
func (c *Conv1D) Accept(init Initializer) {
	init.VisitConv(c)
}

// InSize returns the number of input channels.
func (c *Conv1D) InSize() int { return c.inChannels }

// OutSize returns the number of output channels.
func (c *Conv1D) OutSize() int { return c.outChannels }

// KernelSize returns the kernel size.
func (c *Conv1D) KernelSize() int { return c.kernelSize }

// Stride returns the stride.
func (c *Conv1D) Stride() int { return c.stride }

// Padding returns the padding.
func (c *Conv1D) Padding() int { return c.padding }

// SetWeight sets one weight at (outChannel, inChannel, k).
func (c *Conv1D) SetWeight(oc, ic, k int, val float64) {
	c.weights[oc*c.inChannels*c.kernelSize+ic*c.kernelSize+k] = val
}

// SetBias sets one output channel's bias.
func (c *Conv1D) SetBias(oc int, val float64) {
	c.biases[oc] = val
}
