package layer

import (
	"fmt"

	"github.com/sensorlab/transientvae/internal/activations"
)

// ConvTranspose1D implements a strided 1-D transposed convolution, the
// upsampling mirror of Conv1D: each input position scatters a kernel's worth
// of contributions into the longer output.
type ConvTranspose1D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	// Weights: [inChannels, outChannels, kernelSize] flattened row-major,
	// the transposed-convolution layout.
	weights []float64
	biases  []float64

	act activations.Activation

	outputBuf []float64
}

// NewConvTranspose1D creates a 1-D transposed convolutional layer. Weights
// start at zero; the model builder runs an Initializer over the finished
// network.
func NewConvTranspose1D(inChannels, outChannels, kernelSize, stride, padding int,
	act activations.Activation) *ConvTranspose1D {

	return &ConvTranspose1D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weights:     make([]float64, inChannels*outChannels*kernelSize),
		biases:      make([]float64, outChannels),
		act:         act,
	}
}

// ForwardBatch upsamples a batch of [inChannels, length] samples into
// [outChannels, (length-1)*stride - 2*pad + kernel] per sample, with the
// layer's activation applied.
func (c *ConvTranspose1D) ForwardBatch(x []float64, batchSize int) []float64 {
	if batchSize <= 0 || len(x)%(batchSize*c.inChannels) != 0 {
		panic(fmt.Sprintf("ConvTranspose1D: input length %d not divisible into %d samples of %d channels",
			len(x), batchSize, c.inChannels))
	}
	inLen := len(x) / (batchSize * c.inChannels)
	outLen := ConvTransposeOutLen(inLen, c.kernelSize, c.stride, c.padding)
	if outLen <= 0 {
		panic(fmt.Sprintf("ConvTranspose1D: input length %d yields non-positive output", inLen))
	}

	required := batchSize * c.outChannels * outLen
	if len(c.outputBuf) < required {
		c.outputBuf = make([]float64, required)
	}
	out := c.outputBuf[:required]

	ocWeightStride := c.kernelSize
	icWeightStride := c.outChannels * ocWeightStride

	for b := 0; b < batchSize; b++ {
		inBase := b * c.inChannels * inLen
		outBase := b * c.outChannels * outLen

		// Seed the accumulator with biases.
		for oc := 0; oc < c.outChannels; oc++ {
			ocOutBase := outBase + oc*outLen
			bias := c.biases[oc]
			for ol := 0; ol < outLen; ol++ {
				out[ocOutBase+ol] = bias
			}
		}

		// Scatter each input position through the kernel.
		for ic := 0; ic < c.inChannels; ic++ {
			icWeightBase := ic * icWeightStride
			icInBase := inBase + ic*inLen
			for oc := 0; oc < c.outChannels; oc++ {
				ocWeightBase := icWeightBase + oc*ocWeightStride
				ocOutBase := outBase + oc*outLen
				for il := 0; il < inLen; il++ {
					v := x[icInBase+il]
					if v == 0 {
						continue
					}
					olBase := il*c.stride - c.padding
					for k := 0; k < c.kernelSize; k++ {
						ol := olBase + k
						if ol >= 0 && ol < outLen {
							out[ocOutBase+ol] += c.weights[ocWeightBase+k] * v
						}
					}
				}
			}
		}

		for oc := 0; oc < c.outChannels; oc++ {
			ocOutBase := outBase + oc*outLen
			for ol := 0; ol < outLen; ol++ {
				out[ocOutBase+ol] = c.act.Activate(out[ocOutBase+ol])
			}
		}
	}
	return out
}

// Params returns weights then biases, flattened.
func (c *ConvTranspose1D) Params() []float64 {
	params := make([]float64, len(c.weights)+len(c.biases))
	copy(params, c.weights)
	copy(params[len(c.weights):], c.biases)
	return params
}

// SetParams updates weights and biases from a flattened slice.
func (c *ConvTranspose1D) SetParams(params []float64) {
	copy(c.weights, params[:len(c.weights)])
	copy(c.biases, params[len(c.weights):])
}

// Accept dispatches to the initializer's transposed-convolution rule.
func (c *ConvTranspose1D) Accept(init Initializer) {
	init.VisitConvTranspose(c)
}

// InSize returns the number of input channels.
func (c *ConvTranspose1D) InSize() int { return c.inChannels }

// OutSize returns the number of output channels.
func (c *ConvTranspose1D) OutSize() int { return c.outChannels }

// KernelSize returns the kernel size.
func (c *ConvTranspose1D) KernelSize() int { return c.kernelSize }

// SetWeight sets one weight at (inChannel, outChannel, k).
func (c *ConvTranspose1D) SetWeight(ic, oc, k int, val float64) {
	c.weights[ic*c.outChannels*c.kernelSize+oc*c.kernelSize+k] = val
}

// SetBias sets one output channel's bias.
func (c *ConvTranspose1D) SetBias(oc int, val float64) {
	c.biases[oc] = val
}
