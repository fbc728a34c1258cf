package loss

import (
	"errors"
	"math"
	"testing"
)

func approx(t *testing.T, got, want, tol float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v", msg, got, want)
	}
}

// TestELBOReconstructionTerm checks the half-sum-of-squares term and its
// negated logp diagnostic.
func TestELBOReconstructionTerm(t *testing.T) {
	e := NewELBO(1)

	input := []float64{1, 2}
	recon := []float64{0, 0}
	mu := []float64{0}
	logvar := []float64{0}

	loss, diag, err := e.Forward(recon, input, mu, logvar, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	// 0.5 * (1 + 4) = 2.5, KL = 0
	approx(t, loss[0], 2.5, 1e-12, "loss")
	approx(t, diag.KL[0], 0, 1e-12, "KL")
	approx(t, diag.LogP[0], -2.5, 1e-12, "logp")
}

// TestELBOKLZeroAtPrior checks KL vanishes when the posterior equals the
// standard-normal prior.
func TestELBOKLZeroAtPrior(t *testing.T) {
	e := NewELBO(1)

	x := []float64{0.5, -0.5}
	loss, diag, err := e.Forward(x, x, []float64{0, 0, 0}, []float64{0, 0, 0}, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, diag.KL[0], 0, 1e-12, "KL at prior")
	approx(t, loss[0], 0, 1e-12, "loss at prior with perfect reconstruction")
}

// TestELBOKLPositive checks KL is strictly positive away from the prior.
func TestELBOKLPositive(t *testing.T) {
	e := NewELBO(1)

	tests := []struct {
		name   string
		mu     []float64
		logvar []float64
		want   float64
	}{
		// 0.5 * (exp(0) + 1 - 0 - 1) = 0.5 per dimension
		{"Shifted mean", []float64{1, 1}, []float64{0, 0}, 1.0},
		// 0.5 * (e + 0 - 1 - 1)
		{"Widened variance", []float64{0}, []float64{1}, 0.5 * (math.E - 2)},
		// 0.5 * (exp(-1) + 0 + 1 - 1)
		{"Narrowed variance", []float64{0}, []float64{-1}, 0.5 * math.Exp(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := []float64{0}
			_, diag, err := e.Forward(x, x, tt.mu, tt.logvar, 1, false)
			if err != nil {
				t.Fatal(err)
			}
			approx(t, diag.KL[0], tt.want, 1e-12, "KL")
			if diag.KL[0] <= 0 {
				t.Error("KL should be strictly positive away from the prior")
			}
		})
	}
}

// TestELBOBetaWeighting checks beta scales only the KL term.
func TestELBOBetaWeighting(t *testing.T) {
	input := []float64{1, 0}
	recon := []float64{0, 0}
	mu := []float64{1}
	logvar := []float64{0}

	for _, beta := range []float64{0, 1, 4} {
		loss, _, err := NewELBO(beta).Forward(recon, input, mu, logvar, 1, false)
		if err != nil {
			t.Fatal(err)
		}
		// rec = 0.5, KL = 0.5
		approx(t, loss[0], 0.5+beta*0.5, 1e-12, "loss")
	}
}

// TestELBOReduceMatchesManualMean checks reduce=true equals averaging the
// per-sample vectors over the batch.
func TestELBOReduceMatchesManualMean(t *testing.T) {
	e := NewELBO(1)

	input := []float64{1, 2, 3, -1, 0, 2, 4, 1}
	recon := []float64{0.5, 2, 2, -1, 1, 2, 3.5, 0}
	mu := []float64{0.3, -0.7, 1.1, 0}
	logvar := []float64{0.2, 0, -0.4, 0.9}
	const batch = 2

	per, perDiag, err := e.Forward(recon, input, mu, logvar, batch, false)
	if err != nil {
		t.Fatal(err)
	}
	red, redDiag, err := e.Forward(recon, input, mu, logvar, batch, true)
	if err != nil {
		t.Fatal(err)
	}

	if len(per) != batch || len(red) != 1 {
		t.Fatalf("lengths = %d, %d; want %d, 1", len(per), len(red), batch)
	}
	approx(t, red[0], (per[0]+per[1])/2, 1e-12, "reduced loss")
	approx(t, redDiag.KL[0], (perDiag.KL[0]+perDiag.KL[1])/2, 1e-12, "reduced KL")
	approx(t, redDiag.LogP[0], (perDiag.LogP[0]+perDiag.LogP[1])/2, 1e-12, "reduced logp")
}

// TestELBOShapeMismatch checks mismatched inputs surface as errors.
func TestELBOShapeMismatch(t *testing.T) {
	e := NewELBO(1)

	tests := []struct {
		name   string
		recon  []float64
		input  []float64
		mu     []float64
		logvar []float64
		batch  int
	}{
		{"Recon vs input", []float64{1, 2}, []float64{1}, []float64{0}, []float64{0}, 1},
		{"Mu vs logvar", []float64{1}, []float64{1}, []float64{0, 0}, []float64{0}, 1},
		{"Indivisible batch", []float64{1, 2, 3}, []float64{1, 2, 3}, []float64{0, 0}, []float64{0, 0}, 2},
		{"Zero batch", []float64{1}, []float64{1}, []float64{0}, []float64{0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.Forward(tt.recon, tt.input, tt.mu, tt.logvar, tt.batch, true)
			if !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("err = %v, want ErrShapeMismatch", err)
			}
		})
	}
}
