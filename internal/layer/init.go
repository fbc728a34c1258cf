package layer

import "math"

// Initializer visits each layer kind and fills in its parameters. Dispatch
// happens through Layer.Accept, so adding a layer kind extends the visitor
// rather than any runtime type inspection.
type Initializer interface {
	VisitConv(c *Conv1D)
	VisitConvTranspose(c *ConvTranspose1D)
	VisitBatchNorm(b *BatchNorm1D)
}

// KaimingNormal initializes convolution weights from N(0, 2/fanOut), the
// fan-out variance-scaling rule for ReLU networks (He et al. 2015), and
// normalization layers to unit gamma / zero beta. Biases start at zero.
type KaimingNormal struct {
	rng *RNG
}

// NewKaimingNormal creates an initializer drawing from the given generator.
func NewKaimingNormal(rng *RNG) *KaimingNormal {
	return &KaimingNormal{rng: rng}
}

// VisitConv fills convolution weights with fan-out scaled normals.
func (k *KaimingNormal) VisitConv(c *Conv1D) {
	fanOut := c.outChannels * c.kernelSize
	k.fill(c.weights, fanOut)
	for i := range c.biases {
		c.biases[i] = 0
	}
}

// VisitConvTranspose fills transposed-convolution weights with fan-out
// scaled normals. Fan-out counts the channels the layer produces, same as
// the forward convolution.
func (k *KaimingNormal) VisitConvTranspose(c *ConvTranspose1D) {
	fanOut := c.outChannels * c.kernelSize
	k.fill(c.weights, fanOut)
	for i := range c.biases {
		c.biases[i] = 0
	}
}

// VisitBatchNorm sets unit scale and zero shift.
func (k *KaimingNormal) VisitBatchNorm(b *BatchNorm1D) {
	for i := range b.gamma {
		b.gamma[i] = 1
	}
	for i := range b.beta {
		b.beta[i] = 0
	}
}

func (k *KaimingNormal) fill(w []float64, fanOut int) {
	std := math.Sqrt(2.0 / float64(fanOut))
	for i := range w {
		w[i] = k.rng.RandNorm() * std
	}
}
