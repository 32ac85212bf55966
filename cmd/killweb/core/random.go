package core

import (
	"math"
	"math/rand/v2"
)

// Rand is the statistical contract the simulation needs from a random source
type Rand interface {
	// Float64 is uniform in [0, 1)
	Float64() float64
	// NormFloat64 is standard normal
	NormFloat64() float64
}

// NewRand returns a seeded, reproducible source
func NewRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Bernoulli draws a single trial with success probability p
func Bernoulli(rng Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float64() < p
}

// ShiftedExponential returns the next due time after now for a process whose
// inter-arrival is minDelay plus an exponential with mean (meanDelay - minDelay).
func ShiftedExponential(now, minDelay, meanDelay float64, rng Rand) float64 {
	spread := meanDelay - minDelay
	if spread < 0 {
		spread = 0
	}
	if minDelay <= 0 && spread == 0 {
		// degenerate configuration, the loop below would never advance
		return math.Nextafter(now, math.Inf(1))
	}
	next := now
	for next <= now {
		next += minDelay - math.Log(1-rng.Float64())*spread
	}
	return next
}
