package qam

import (
	"fmt"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Number mirrors the teacher's generic constraint in m17/transform.go,
// reused here for the renormalization floor helper.
type Number interface {
	constraints.Integer | constraints.Float
}

func minOf[T Number](vals []T) T {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func argmin(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v < vals[best] {
			best = i
		}
	}
	return best
}

// Viterbi is a soft-decision Viterbi decoder for a rate 1/R,
// constraint-length K convolutional code, generalized from the
// teacher's fixed K=5 M17 ViterbiDecoder (m17/codec.go) to a
// parametrized branch table.
type Viterbi struct {
	k, r        int
	states      int
	butterflies int
	branch      [][]float64 // [r][butterflies]
	softLow     float64
	softHigh    float64
	maxMetric   float64

	old, cur  []float64
	decisions [][]uint64 // one row per trellis step, states bits wide
	words     int
	maxSteps  int

	// padSteps counts the extra all-zero trellis steps a terminated
	// Encode call contributes purely to round its output up to a whole
	// number of bytes, on top of the k-1 steps that actually flush the
	// encoder's shift register. Byte length is a function of k and r
	// alone (every Encode call starts and ends byte-aligned), so this
	// is fixed once per Viterbi rather than threaded through Decode.
	padSteps int
}

// NewViterbi builds a decoder for the given code. generatorPolys must
// have exactly r entries, each a K-bit generator polynomial.
// maxSteps bounds the longest frame (in trellis steps) this decoder
// will ever be asked to decode, fixing its buffers at construction.
func NewViterbi(k, r int, generatorPolys []byte, softLow, softHigh float64, maxSteps int) (*Viterbi, error) {
	if k < 3 {
		return nil, fmt.Errorf("constraint_length K must be >= 3, got %d", k)
	}
	if r < 1 || len(generatorPolys) != r {
		return nil, fmt.Errorf("need exactly code_rate=%d generator polynomials, got %d", r, len(generatorPolys))
	}
	if !(softLow < softHigh) {
		return nil, fmt.Errorf("soft_low (%v) must be < soft_high (%v)", softLow, softHigh)
	}
	if maxSteps <= 0 {
		return nil, fmt.Errorf("max trellis step count must be positive, got %d", maxSteps)
	}
	if 8%r != 0 {
		return nil, fmt.Errorf("code_rate %d must divide 8 for byte-aligned termination padding", r)
	}

	states := 1 << (k - 1)
	butterflies := 1 << (k - 2)
	v := &Viterbi{
		k: k, r: r,
		states:      states,
		butterflies: butterflies,
		softLow:     softLow,
		softHigh:    softHigh,
		maxMetric:   float64(r) * (softHigh - softLow),
		old:         make([]float64, states),
		cur:         make([]float64, states),
		words:       (states + 63) / 64,
		maxSteps:    maxSteps,
	}
	v.decisions = make([][]uint64, maxSteps)
	for i := range v.decisions {
		v.decisions[i] = make([]uint64, v.words)
	}

	// A terminated Encode appends k-1 zero steps to flush the register,
	// then right-pads the final output byte with zero bits to reach a
	// byte boundary. Since Encode's input is always whole bytes, those
	// k-1 steps' bit count mod 8 is the same on every call, so the pad
	// length (in steps) is a constant determined by k and r alone.
	gapBits := (8 - ((k-1)*r)%8) % 8
	v.padSteps = gapBits / r

	v.branch = make([][]float64, r)
	for j := 0; j < r; j++ {
		v.branch[j] = make([]float64, butterflies)
		poly := uint(generatorPolys[j])
		for s := 0; s < butterflies; s++ {
			if bits.OnesCount(uint(2*s)&poly)%2 == 1 {
				v.branch[j][s] = softHigh
			} else {
				v.branch[j][s] = softLow
			}
		}
	}
	return v, nil
}

func (v *Viterbi) reset() {
	const startPenalty = 1e18
	for i := range v.old {
		v.old[i] = startPenalty
	}
	v.old[0] = 0
	for _, row := range v.decisions {
		for i := range row {
			row[i] = 0
		}
	}
}

func (v *Viterbi) setDecision(step, state int, one bool) {
	if one {
		v.decisions[step][state/64] |= 1 << uint(state%64)
	}
}

func (v *Viterbi) getDecision(step, state int) int {
	if v.decisions[step][state/64]&(1<<uint(state%64)) != 0 {
		return 1
	}
	return 0
}

// Decode runs the add-compare-select recursion over soft (R values per
// trellis step, flattened) and returns the decoded bytes, the
// best-path metric (decoded_error), and any structural error.
// terminated selects whether traceback starts from the known-zero tail
// state (the K-1 tail steps and Encode's byte-alignment padding steps
// are dropped from the output) or from the
// minimum-metric final state when no tail is known.
func (v *Viterbi) Decode(soft []float64, terminated bool) ([]byte, float64, error) {
	if len(soft)%v.r != 0 {
		return nil, 0, fmt.Errorf("soft input length %d is not a multiple of code_rate %d", len(soft), v.r)
	}
	steps := len(soft) / v.r
	if steps > v.maxSteps {
		return nil, 0, fmt.Errorf("frame of %d trellis steps exceeds configured maximum %d", steps, v.maxSteps)
	}

	v.reset()
	for t := 0; t < steps; t++ {
		sym := soft[t*v.r : (t+1)*v.r]
		for i := 0; i < v.butterflies; i++ {
			var metric float64
			for j := 0; j < v.r; j++ {
				d := v.branch[j][i] - sym[j]
				if d < 0 {
					d = -d
				}
				metric += d
			}
			comp := v.maxMetric - metric

			m0 := v.old[i] + metric
			m1 := v.old[i+v.butterflies] + comp
			m2 := v.old[i] + comp
			m3 := v.old[i+v.butterflies] + metric

			lo := 2 * i
			hi := lo + 1
			if m0 <= m1 {
				v.cur[lo] = m0
				v.setDecision(t, lo, false)
			} else {
				v.cur[lo] = m1
				v.setDecision(t, lo, true)
			}
			if m2 <= m3 {
				v.cur[hi] = m2
				v.setDecision(t, hi, false)
			} else {
				v.cur[hi] = m3
				v.setDecision(t, hi, true)
			}
		}
		// Subtracting the floor every step (rather than only once a
		// metric crosses maxMetric's ceiling) is a strictly stronger
		// renormalization: the running minimum is still always 0, so
		// path selection is unaffected.
		floor := minOf(v.cur)
		for i := range v.cur {
			v.cur[i] -= floor
		}
		v.old, v.cur = v.cur, v.old
	}

	terminalState := 0
	tailLen := 0
	if terminated {
		// The trailing tailLen steps are the k-1 register-flushing
		// steps plus padSteps phantom steps contributed by Encode's
		// byte-alignment padding; neither carries real data.
		tailLen = v.k - 1 + v.padSteps
	} else {
		terminalState = argmin(v.old)
	}
	decodedError := v.old[terminalState]
	return v.chainback(terminalState, steps, tailLen), decodedError, nil
}

func (v *Viterbi) chainback(terminalState, totalSteps, tailLen int) []byte {
	outBits := totalSteps - tailLen
	if outBits < 0 {
		outBits = 0
	}
	out := make([]byte, (outBits+7)/8)

	state := terminalState
	for pos := totalSteps - 1; pos >= 0; pos-- {
		bit := v.getDecision(pos, state)
		// The input bit that drove this transition is the low bit of
		// the state it produced, not the ACS decision (which instead
		// records which source super-state won and is only used below
		// to walk the state back one step).
		dataBit := state & 1
		state = (state >> 1) | (bit << uint(v.k-2))
		if pos < outBits && dataBit != 0 {
			out[pos/8] |= 1 << uint(7-(pos%8))
		}
	}
	return out
}
