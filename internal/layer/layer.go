// Package layer provides the 1-D neural network layers the transient VAE is
// built from, plus the plan records the model builder derives them from.
package layer

// Layer is a 1-D network layer operating on flat row-major
// [batch][channel][length] slices.
type Layer interface {
	// ForwardBatch runs the layer over a batch. The input length must be
	// divisible into batchSize samples of the layer's expected shape.
	ForwardBatch(x []float64, batchSize int) []float64

	// Params returns all learnable parameters flattened.
	Params() []float64

	// SetParams updates parameters from a flattened slice.
	SetParams(params []float64)

	// InSize returns the number of input channels.
	InSize() int

	// OutSize returns the number of output channels.
	OutSize() int

	// Accept dispatches the layer to an Initializer.
	Accept(init Initializer)
}

// Kind identifies a layer kind within a plan.
type Kind int

const (
	// KindConv is a strided convolution.
	KindConv Kind = iota
	// KindConvTranspose is a strided transposed convolution.
	KindConvTranspose
)

// Spec describes one convolution stage of a pyramid plan: the layer kind,
// channel widths, kernel geometry, whether batch normalization follows, and
// the activation applied at the end of the stage. The model builder emits an
// ordered []Spec for the encoder; the decoder plan is the same sequence
// reversed with the convolution direction swapped.
type Spec struct {
	Kind    Kind
	In      int
	Out     int
	Kernel  int
	Stride  int
	Pad     int
	Norm    bool
	Act     Act
}

// Act names the activation that closes a stage.
type Act int

const (
	// ActLinear leaves the stage output pre-activation.
	ActLinear Act = iota
	// ActReLU clamps negatives to zero.
	ActReLU
	// ActTanh bounds the output to (-1, 1).
	ActTanh
)

// Reversed returns the plan with stage order and convolution direction
// flipped: encoder stage (in -> out, Conv) becomes decoder stage
// (out -> in, ConvTranspose) and vice versa. Kernel geometry is preserved.
func Reversed(plan []Spec) []Spec {
	out := make([]Spec, len(plan))
	for i, s := range plan {
		kind := KindConvTranspose
		if s.Kind == KindConvTranspose {
			kind = KindConv
		}
		out[len(plan)-1-i] = Spec{
			Kind:   kind,
			In:     s.Out,
			Out:    s.In,
			Kernel: s.Kernel,
			Stride: s.Stride,
			Pad:    s.Pad,
			Norm:   s.Norm,
			Act:    s.Act,
		}
	}
	return out
}

// ConvOutLen is the spatial output length of a strided convolution.
func ConvOutLen(in, kernel, stride, pad int) int {
	return (in+2*pad-kernel)/stride + 1
}

// ConvTransposeOutLen is the spatial output length of a strided transposed
// convolution, the inverse of ConvOutLen for matching geometry.
func ConvTransposeOutLen(in, kernel, stride, pad int) int {
	return (in-1)*stride - 2*pad + kernel
}
