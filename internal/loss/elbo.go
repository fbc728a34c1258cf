// Package loss provides the negative evidence-lower-bound objective for the
// transient VAE.
package loss

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrShapeMismatch reports loss inputs whose lengths disagree with the
// batch size or with each other.
var ErrShapeMismatch = errors.New("loss: shape mismatch")

// Diagnostics exposes the loss terms for monitoring. Read-only outputs:
// KL is the per-sample divergence from the standard-normal prior, LogP the
// negated reconstruction error. Length 1 when the loss was reduced.
type Diagnostics struct {
	KL   []float64
	LogP []float64
}

// ELBO computes the negative evidence lower bound: half the summed squared
// reconstruction error plus Beta times the closed-form KL divergence of the
// diagonal-Gaussian posterior against N(0, I). Beta weighs the regularizer
// against reconstruction fidelity (beta-VAE objective).
type ELBO struct {
	Beta float64
}

// NewELBO creates the loss with the given KL weight. The standard ELBO uses
// beta = 1.
func NewELBO(beta float64) *ELBO {
	return &ELBO{Beta: beta}
}

// Forward computes the loss for a batch. recon and input are flat
// [batch][channel][length] slices of equal length; mu and logvar are flat
// [batch][latent] slices of equal length. With reduce set, the returned
// loss and both diagnostic terms are averaged over the batch (length-1
// slices); otherwise they are per-sample vectors.
func (e *ELBO) Forward(recon, input, mu, logvar []float64, batchSize int, reduce bool) ([]float64, Diagnostics, error) {
	if batchSize <= 0 {
		return nil, Diagnostics{}, fmt.Errorf("%w: batch size %d", ErrShapeMismatch, batchSize)
	}
	if len(recon) != len(input) || len(recon)%batchSize != 0 {
		return nil, Diagnostics{}, fmt.Errorf("%w: reconstruction length %d vs input length %d over %d samples",
			ErrShapeMismatch, len(recon), len(input), batchSize)
	}
	if len(mu) != len(logvar) || len(mu)%batchSize != 0 {
		return nil, Diagnostics{}, fmt.Errorf("%w: mu length %d vs logvar length %d over %d samples",
			ErrShapeMismatch, len(mu), len(logvar), batchSize)
	}

	sampleLen := len(recon) / batchSize
	latentLen := len(mu) / batchSize

	genErr := make([]float64, batchSize)
	kl := make([]float64, batchSize)
	for b := 0; b < batchSize; b++ {
		base := b * sampleLen
		var sum float64
		for i := 0; i < sampleLen; i++ {
			diff := input[base+i] - recon[base+i]
			sum += diff * diff
		}
		genErr[b] = 0.5 * sum

		// KL(q || p) = sum 0.5 * (exp(logvar) + mu^2 - logvar - 1)
		lbase := b * latentLen
		var klSum float64
		for i := 0; i < latentLen; i++ {
			m := mu[lbase+i]
			lv := logvar[lbase+i]
			klSum += 0.5 * (math.Exp(lv) + m*m - lv - 1)
		}
		kl[b] = klSum
	}

	if reduce {
		genErr = []float64{stat.Mean(genErr, nil)}
		kl = []float64{stat.Mean(kl, nil)}
	}

	loss := make([]float64, len(genErr))
	logp := make([]float64, len(genErr))
	for i := range loss {
		loss[i] = genErr[i] + e.Beta*kl[i]
		logp[i] = -genErr[i]
	}
	return loss, Diagnostics{KL: kl, LogP: logp}, nil
}
