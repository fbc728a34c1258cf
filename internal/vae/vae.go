// Package vae implements a 1-D convolutional variational autoencoder for
// fixed-length multi-channel transient vectors. The network topology is
// derived entirely from the input size: a pyramid of stride-2 convolutions
// doubles channel depth while halving length until the latent heads collapse
// the remainder to a single position, and the decoder mirrors the pyramid
// with transposed convolutions.
package vae

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/sensorlab/transientvae/internal/activations"
	"github.com/sensorlab/transientvae/internal/layer"
)

var (
	// ErrBadSize reports a vector size that is not a power of two >= 8.
	ErrBadSize = errors.New("vae: size must be a power of two, at least 8")

	// ErrBadGeometry reports a kernel/stride/pad combination whose pyramid
	// does not collapse cleanly to a single latent position.
	ErrBadGeometry = errors.New("vae: pyramid geometry does not collapse to the latent size")

	// ErrShapeMismatch reports input whose flat length disagrees with the
	// model's (batch, channels, size) contract.
	ErrShapeMismatch = errors.New("vae: shape mismatch")
)

// Config carries the constructor hyperparameters. Size, Channels and the
// defaults below fully determine the network topology.
type Config struct {
	// Size is the per-channel vector length. Must be a power of two >= 8.
	Size int

	// Channels is the number of input channels.
	Channels int

	// Latent is the latent code length. Defaults to 100.
	Latent int

	// Depth is the channel width of the first pyramid stage. Defaults to 64.
	Depth int

	// Kernel, Stride and Pad set the convolution geometry of every pyramid
	// stage. Default to 4, 2 and 1, which halve the length per stage.
	Kernel int
	Stride int
	Pad    int

	// Seed drives weight initialization and latent sampling.
	Seed uint64
}

// DefaultConfig returns a Config for the given geometry with the standard
// hyperparameters filled in.
func DefaultConfig(size, channels int) Config {
	return Config{
		Size:     size,
		Channels: channels,
		Latent:   100,
		Depth:    64,
		Kernel:   4,
		Stride:   2,
		Pad:      1,
	}
}

func (c *Config) fillDefaults() {
	if c.Latent == 0 {
		c.Latent = 100
	}
	if c.Depth == 0 {
		c.Depth = 64
	}
	if c.Kernel == 0 {
		c.Kernel = 4
	}
	if c.Stride == 0 {
		c.Stride = 2
	}
	if c.Pad == 0 && c.Kernel == 4 && c.Stride == 2 {
		c.Pad = 1
	}
}

// VAE1D is the model: encoder pyramid, parallel mu/logvar latent heads, and
// the mirrored decoder pyramid.
type VAE1D struct {
	cfg      Config
	maxDepth int

	encoder    []layer.Layer
	convMu     *layer.Conv1D
	convLogvar *layer.Conv1D
	decoder    []layer.Layer

	// latent sampling
	rng *layer.RNG
}

// New builds a VAE1D from the given config. The pyramid has
// log2(size) - 2 downsampling stages; construction fails rather than
// producing an ill-shaped network.
func New(cfg Config) (*VAE1D, error) {
	cfg.fillDefaults()
	if cfg.Size < 8 || bits.OnesCount(uint(cfg.Size)) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrBadSize, cfg.Size)
	}
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("vae: channels must be positive, got %d", cfg.Channels)
	}
	if cfg.Latent <= 0 {
		return nil, fmt.Errorf("vae: latent length must be positive, got %d", cfg.Latent)
	}
	n := bits.TrailingZeros(uint(cfg.Size))
	maxDepth := cfg.Depth << (n - 3)

	// Encoder plan: one record per pyramid stage, ending with the latent
	// head geometry. The decoder plan is this sequence reversed with the
	// convolution direction swapped.
	plan := make([]layer.Spec, 0, n-1)
	plan = append(plan, layer.Spec{
		Kind: layer.KindConv, In: cfg.Channels, Out: cfg.Depth,
		Kernel: cfg.Kernel, Stride: cfg.Stride, Pad: cfg.Pad, Act: layer.ActReLU,
	})
	for i := 0; i < n-3; i++ {
		plan = append(plan, layer.Spec{
			Kind: layer.KindConv, In: cfg.Depth << i, Out: cfg.Depth << (i + 1),
			Kernel: cfg.Kernel, Stride: cfg.Stride, Pad: cfg.Pad,
			Norm: true, Act: layer.ActReLU,
		})
	}
	head := layer.Spec{
		Kind: layer.KindConv, In: maxDepth, Out: cfg.Latent,
		Kernel: cfg.Kernel, Stride: 1, Pad: 0, Act: layer.ActLinear,
	}

	if err := checkGeometry(cfg, plan, head); err != nil {
		return nil, err
	}

	decPlan := layer.Reversed(append(append([]layer.Spec{}, plan...), head))
	for i := range decPlan {
		last := i == len(decPlan)-1
		decPlan[i].Norm = !last
		if last {
			decPlan[i].Act = layer.ActTanh
		} else {
			decPlan[i].Act = layer.ActReLU
		}
	}

	m := &VAE1D{
		cfg:        cfg,
		maxDepth:   maxDepth,
		encoder:    materialize(plan),
		convMu:     headConv(cfg, maxDepth),
		convLogvar: headConv(cfg, maxDepth),
		decoder:    materialize(decPlan),
		rng:        layer.NewRNG(cfg.Seed ^ 0x74616e73),
	}

	kaiming := layer.NewKaimingNormal(layer.NewRNG(cfg.Seed))
	for _, l := range m.layers() {
		l.Accept(kaiming)
	}
	return m, nil
}

// checkGeometry simulates spatial lengths through both pyramids so a bad
// kernel/stride/pad combination fails at construction, not mid-forward.
func checkGeometry(cfg Config, plan []layer.Spec, head layer.Spec) error {
	l := cfg.Size
	for _, s := range plan {
		l = layer.ConvOutLen(l, s.Kernel, s.Stride, s.Pad)
		if l <= 0 {
			return fmt.Errorf("%w: encoder stage exhausts length", ErrBadGeometry)
		}
	}
	if layer.ConvOutLen(l, head.Kernel, head.Stride, head.Pad) != 1 {
		return fmt.Errorf("%w: latent head sees length %d, kernel %d", ErrBadGeometry, l, head.Kernel)
	}
	l = layer.ConvTransposeOutLen(1, head.Kernel, head.Stride, head.Pad)
	for i := len(plan) - 1; i >= 0; i-- {
		s := plan[i]
		l = layer.ConvTransposeOutLen(l, s.Kernel, s.Stride, s.Pad)
	}
	if l != cfg.Size {
		return fmt.Errorf("%w: decoder restores length %d, want %d", ErrBadGeometry, l, cfg.Size)
	}
	return nil
}

// materialize turns a plan into layers: each stage is a convolution, with
// batch normalization between convolution and activation where the record
// asks for it.
func materialize(plan []layer.Spec) []layer.Layer {
	var layers []layer.Layer
	for _, s := range plan {
		convAct := actOf(s.Act)
		if s.Norm {
			convAct = activations.Linear{}
		}
		switch s.Kind {
		case layer.KindConv:
			layers = append(layers, layer.NewConv1D(s.In, s.Out, s.Kernel, s.Stride, s.Pad, convAct))
		case layer.KindConvTranspose:
			layers = append(layers, layer.NewConvTranspose1D(s.In, s.Out, s.Kernel, s.Stride, s.Pad, convAct))
		}
		if s.Norm {
			layers = append(layers, layer.NewBatchNorm1D(s.Out, 1e-5, 0.1, actOf(s.Act)))
		}
	}
	return layers
}

func headConv(cfg Config, maxDepth int) *layer.Conv1D {
	return layer.NewConv1D(maxDepth, cfg.Latent, cfg.Kernel, 1, 0, activations.Linear{})
}

func actOf(a layer.Act) activations.Activation {
	switch a {
	case layer.ActReLU:
		return activations.ReLU{}
	case layer.ActTanh:
		return activations.Tanh{}
	default:
		return activations.Linear{}
	}
}

func (m *VAE1D) layers() []layer.Layer {
	all := make([]layer.Layer, 0, len(m.encoder)+len(m.decoder)+2)
	all = append(all, m.encoder...)
	all = append(all, m.convMu, m.convLogvar)
	all = append(all, m.decoder...)
	return all
}

// Encode runs the encoder pyramid and both latent heads over a flat
// [batch][channel][length] batch, returning mu and logvar of length
// batchSize * Latent each.
func (m *VAE1D) Encode(x []float64, batchSize int) (mu, logvar []float64, err error) {
	if err := m.checkInput(len(x), batchSize); err != nil {
		return nil, nil, err
	}
	cur := x
	for _, l := range m.encoder {
		cur = l.ForwardBatch(cur, batchSize)
	}
	mu = append([]float64(nil), m.convMu.ForwardBatch(cur, batchSize)...)
	logvar = append([]float64(nil), m.convLogvar.ForwardBatch(cur, batchSize)...)
	return mu, logvar, nil
}

// Generate draws a latent code with the reparameterization trick:
// z = eps * exp(0.5 * logvar) + mu, eps ~ N(0, I). Sampling stays a
// deterministic function of the model seed and call history.
func (m *VAE1D) Generate(mu, logvar []float64) []float64 {
	if len(mu) != len(logvar) {
		panic(fmt.Sprintf("vae: mu length %d != logvar length %d", len(mu), len(logvar)))
	}
	z := make([]float64, len(mu))
	for i := range z {
		std := math.Exp(0.5 * logvar[i])
		z[i] = m.rng.RandNorm()*std + mu[i]
	}
	return z
}

// Decode runs a batch of latent codes (length batchSize * Latent, unit
// spatial extent) through the decoder pyramid, restoring
// [batch][channel][size] output.
func (m *VAE1D) Decode(z []float64, batchSize int) ([]float64, error) {
	if batchSize <= 0 || len(z) != batchSize*m.cfg.Latent {
		return nil, fmt.Errorf("%w: latent batch length %d, want %d x %d",
			ErrShapeMismatch, len(z), batchSize, m.cfg.Latent)
	}
	cur := z
	for _, l := range m.decoder {
		cur = l.ForwardBatch(cur, batchSize)
	}
	return append([]float64(nil), cur...), nil
}

// Forward composes encode, generate and decode, returning the
// reconstruction together with mu and logvar for the loss.
func (m *VAE1D) Forward(x []float64, batchSize int) (recon, mu, logvar []float64, err error) {
	mu, logvar, err = m.Encode(x, batchSize)
	if err != nil {
		return nil, nil, nil, err
	}
	z := m.Generate(mu, logvar)
	recon, err = m.Decode(z, batchSize)
	if err != nil {
		return nil, nil, nil, err
	}
	return recon, mu, logvar, nil
}

func (m *VAE1D) checkInput(n, batchSize int) error {
	want := batchSize * m.cfg.Channels * m.cfg.Size
	if batchSize <= 0 || n != want {
		return fmt.Errorf("%w: batch length %d, want %d (%d x %d x %d)",
			ErrShapeMismatch, n, want, batchSize, m.cfg.Channels, m.cfg.Size)
	}
	return nil
}

// Params returns every model parameter flattened, in construction order.
// The external optimizer owns mutation between forward passes.
func (m *VAE1D) Params() []float64 {
	var params []float64
	for _, l := range m.layers() {
		params = append(params, l.Params()...)
	}
	return params
}

// SetParams writes back a flattened parameter vector of the same layout
// Params returns.
func (m *VAE1D) SetParams(params []float64) {
	off := 0
	for _, l := range m.layers() {
		n := len(l.Params())
		l.SetParams(params[off : off+n])
		off += n
	}
}

// SetTraining switches batch-normalization layers between batch and running
// statistics.
func (m *VAE1D) SetTraining(training bool) {
	for _, l := range m.layers() {
		if t, ok := l.(interface{ SetTraining(bool) }); ok {
			t.SetTraining(training)
		}
	}
}

// Size returns the per-channel vector length the model was built for.
func (m *VAE1D) Size() int { return m.cfg.Size }

// Channels returns the input channel count.
func (m *VAE1D) Channels() int { return m.cfg.Channels }

// Latent returns the latent code length.
func (m *VAE1D) Latent() int { return m.cfg.Latent }

// MaxDepth returns the channel width at the bottom of the pyramid.
func (m *VAE1D) MaxDepth() int { return m.maxDepth }
