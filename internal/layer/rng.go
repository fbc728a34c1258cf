package layer

import "math"

// RNG is a small deterministic random number generator (splitmix64) used for
// reproducible weight initialization and latent sampling. Not safe for
// concurrent use; each owner keeps its own instance.
type RNG struct {
	state uint64

	// polar-method spare
	hasSpare bool
	spare    float64
}

// NewRNG creates a generator seeded with the given value.
func NewRNG(seed uint64) *RNG {
	return &RNG{state: seed}
}

// RandUint64 returns the next 64-bit value.
func (r *RNG) RandUint64() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// RandFloat returns a uniform value in [0, 1).
func (r *RNG) RandFloat() float64 {
	return float64(r.RandUint64()>>11) / (1 << 53)
}

// RandNorm returns a standard-normal value via the Marsaglia polar method.
func (r *RNG) RandNorm() float64 {
	if r.hasSpare {
		r.hasSpare = false
		return r.spare
	}
	var u, v, s float64
	for {
		u = 2*r.RandFloat() - 1
		v = 2*r.RandFloat() - 1
		s = u*u + v*v
		if s > 0 && s < 1 {
			break
		}
	}
	f := math.Sqrt(-2 * math.Log(s) / s)
	r.spare = v * f
	r.hasSpare = true
	return u * f
}
