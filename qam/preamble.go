package qam

import (
	"fmt"
	"math"
	"math/cmplx"
)

// PreambleResult is what PreambleDetector.Process reports for a single
// incoming symbol.
type PreambleResult struct {
	Found          bool
	SelectedPhase  int
	PhaseConflict  bool
	DesyncBitcount int
}

// PreambleDetector runs M parallel sliding-bit matched filters, one per
// phase-ambiguity hypothesis, against a fixed bit pattern. It is
// grounded on the teacher's syncDistance parallel sync-word comparison
// in m17/decoder.go, generalized from four fixed M17 sync words to M
// rotations of a single configured pattern.
type PreambleDetector struct {
	con    *Constellation
	pattern uint32
	width   int
	mask    uint32

	rotators  []complex128
	registers []uint32

	bitsSinceLast int
}

// NewPreambleDetector builds a detector for the given pattern (its low
// width bits, width in (0,32]) over phaseHypotheses equally spaced
// rotations.
func NewPreambleDetector(con *Constellation, pattern uint32, width int, phaseHypotheses int) (*PreambleDetector, error) {
	if width <= 0 || width > 32 {
		return nil, fmt.Errorf("preamble_bits must be in (0,32], got %d", width)
	}
	if phaseHypotheses <= 0 {
		return nil, fmt.Errorf("phase_hypotheses must be positive, got %d", phaseHypotheses)
	}
	mask := uint32(1)<<uint(width) - 1
	rotators := make([]complex128, phaseHypotheses)
	for k := range rotators {
		theta := -2 * math.Pi * float64(k) / float64(phaseHypotheses)
		rotators[k] = cmplx.Rect(1, theta)
	}
	return &PreambleDetector{
		con:       con,
		pattern:   pattern & mask,
		width:     width,
		mask:      mask,
		rotators:  rotators,
		registers: make([]uint32, phaseHypotheses),
	}, nil
}

// Reset clears the sliding registers and resync counter.
func (p *PreambleDetector) Reset() {
	for i := range p.registers {
		p.registers[i] = 0
	}
	p.bitsSinceLast = 0
}

// Rotators exposes the phase-correction rotators, reused by
// FrameSynchroniser once a phase has been selected so the rotation
// table is computed exactly once. Hypothesis k assumes the channel
// rotated the signal by e^{j*2*pi*k/M}, so rotators[k] is the inverse
// rotation e^{-j*2*pi*k/M} that received symbols are multiplied by.
func (p *PreambleDetector) Rotators() []complex128 { return p.rotators }

// Process feeds one symbol to all M matched filters. If more than one
// filter matches on the same symbol, the last match (by hypothesis
// index) wins and PhaseConflict is set — this ambiguity is surfaced,
// not resolved by a best-metric tiebreak.
func (p *PreambleDetector) Process(z complex128) PreambleResult {
	bps := p.con.BitsPerSymbol()
	p.bitsSinceLast += bps

	matched := -1
	conflict := false
	for k, rot := range p.rotators {
		idx := p.con.Nearest(z * rot)
		p.registers[k] = ((p.registers[k] << uint(bps)) | uint32(idx)) & p.mask
		if p.registers[k] == p.pattern {
			if matched >= 0 {
				conflict = true
			}
			matched = k
		}
	}
	if matched < 0 {
		return PreambleResult{}
	}

	res := PreambleResult{
		Found:          true,
		SelectedPhase:  matched,
		PhaseConflict:  conflict,
		DesyncBitcount: p.bitsSinceLast - p.width,
	}
	p.bitsSinceLast = 0
	return res
}
