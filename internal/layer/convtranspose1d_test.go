package layer

import (
	"math"
	"testing"

	"github.com/sensorlab/transientvae/internal/activations"
)

func setAllWeightsT(c *ConvTranspose1D, val float64) {
	for ic := 0; ic < c.InSize(); ic++ {
		for oc := 0; oc < c.OutSize(); oc++ {
			for k := 0; k < c.KernelSize(); k++ {
				c.SetWeight(ic, oc, k, val)
			}
		}
	}
}

// TestConvTranspose1DForwardKnownValues checks the hand-computed scatter of
// unit weights, kernel 4, stride 2, pad 1 over four ones: interior output
// positions receive two overlapping taps, the edges one.
func TestConvTranspose1DForwardKnownValues(t *testing.T) {
	c := NewConvTranspose1D(1, 1, 4, 2, 1, activations.Linear{})
	setAllWeightsT(c, 1)

	x := []float64{1, 1, 1, 1}
	got := c.ForwardBatch(x, 1)
	want := []float64{1, 2, 2, 2, 2, 2, 2, 1}

	if len(got) != len(want) {
		t.Fatalf("output length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("out[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// TestConvTranspose1DUnitSpatial checks the decoder's input stage geometry:
// a length-1 input with kernel 4, stride 1, pad 0 produces length 4, each
// output position one kernel tap.
func TestConvTranspose1DUnitSpatial(t *testing.T) {
	c := NewConvTranspose1D(1, 1, 4, 1, 0, activations.Linear{})
	c.SetWeight(0, 0, 0, 1)
	c.SetWeight(0, 0, 1, 2)
	c.SetWeight(0, 0, 2, 3)
	c.SetWeight(0, 0, 3, 4)

	got := c.ForwardBatch([]float64{2}, 1)
	want := []float64{2, 4, 6, 8}

	if len(got) != len(want) {
		t.Fatalf("output length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// TestConvTransposeMirrorsConv checks that the transposed geometry inverts
// the convolution geometry for the pyramid's kernel 4, stride 2, pad 1.
func TestConvTransposeMirrorsConv(t *testing.T) {
	for _, l := range []int{8, 16, 64, 256} {
		down := ConvOutLen(l, 4, 2, 1)
		up := ConvTransposeOutLen(down, 4, 2, 1)
		if up != l {
			t.Errorf("length %d -> %d -> %d, want round trip", l, down, up)
		}
	}
}

// TestConvTranspose1DBias checks bias is added once per output position.
func TestConvTranspose1DBias(t *testing.T) {
	c := NewConvTranspose1D(1, 2, 4, 2, 1, activations.Linear{})
	c.SetBias(0, 1)
	c.SetBias(1, -1)

	got := c.ForwardBatch(make([]float64, 4), 1)
	for i := 0; i < 8; i++ {
		if got[i] != 1 {
			t.Errorf("channel 0 out[%d] = %v, want 1", i, got[i])
		}
		if got[8+i] != -1 {
			t.Errorf("channel 1 out[%d] = %v, want -1", i, got[8+i])
		}
	}
}

// TestConvTranspose1DShapePanic tests the guard against indivisible input.
func TestConvTranspose1DShapePanic(t *testing.T) {
	c := NewConvTranspose1D(2, 1, 4, 2, 1, activations.Linear{})

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for indivisible input length")
		}
	}()
	c.ForwardBatch(make([]float64, 7), 1)
}
