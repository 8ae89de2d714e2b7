package qam

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

// Constellation is a square L x L QAM grid of bitsPerSymbol = log2(L^2)
// points, normalized so that the outermost points sit on the unit
// magnitude circle.
type Constellation struct {
	l             int
	points        []complex128
	bitsPerSymbol int
	avgPower      float64
}

// NewConstellation builds an L x L constellation. L must be >= 2 and
// L*L must be a power of two.
func NewConstellation(l int) (*Constellation, error) {
	if l < 2 {
		return nil, fmt.Errorf("constellation_L must be >= 2, got %d", l)
	}
	bits := log2Exact(l * l)
	if bits < 0 {
		return nil, fmt.Errorf("constellation_L^2 (%d) is not a power of two", l*l)
	}

	scale := 1.0 / (math.Sqrt2 * (float64(l-1) / 2) * 2)
	points := make([]complex128, 0, l*l)
	powers := make([]float64, 0, l*l)
	for i := 0; i < l; i++ {
		for j := 0; j < l; j++ {
			re := float64(2*i-(l-1)) * scale
			im := float64(2*j-(l-1)) * scale
			points = append(points, complex(re, im))
			powers = append(powers, re*re+im*im)
		}
	}

	return &Constellation{
		l:             l,
		points:        points,
		bitsPerSymbol: bits,
		avgPower:      stat.Mean(powers, nil),
	}, nil
}

func log2Exact(n int) int {
	bits := 0
	for (1 << bits) < n {
		bits++
	}
	if 1<<bits != n {
		return -1
	}
	return bits
}

// BitsPerSymbol returns log2(L^2).
func (c *Constellation) BitsPerSymbol() int { return c.bitsPerSymbol }

// AveragePower returns the mean squared magnitude of all constellation
// points.
func (c *Constellation) AveragePower() float64 { return c.avgPower }

// Points returns the constellation point list in construction order;
// the index into this slice is the symbol's bit pattern.
func (c *Constellation) Points() []complex128 { return c.points }

// Nearest returns the index of the constellation point closest to z
// under Euclidean distance. Ties resolve to the lowest index.
func (c *Constellation) Nearest(z complex128) int {
	best := 0
	bestDist := cmplx.Abs(z - c.points[0])
	for i := 1; i < len(c.points); i++ {
		d := cmplx.Abs(z - c.points[i])
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// SoftMetric reports the Euclidean distance between z and the point at
// index. Diagnostic only: decoding uses its own branch metric (see
// Viterbi) and does not consult this.
func (c *Constellation) SoftMetric(z complex128, index int) float64 {
	return cmplx.Abs(z - c.points[index])
}

// PhaseError reports the angular offset between z and its nearest
// constellation point, wrapped to (-pi, pi]. Diagnostic only.
func (c *Constellation) PhaseError(z complex128) float64 {
	idx := c.Nearest(z)
	d := cmplx.Phase(z) - cmplx.Phase(c.points[idx])
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
