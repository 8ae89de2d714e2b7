package qam

// Encode runs data (and, if terminated, an appended K-1 zero tail)
// through the same convolutional trellis Decode uses, producing the
// R output bits for every input bit in MSB-first byte order.
//
// Unlike the teacher's ConvolutionalEncode (m17/codec.go), which sums
// three fixed taps over a sliding window of a hard-coded K=5 register,
// this walks the *same* butterfly-indexed state machine Decode's ACS
// recursion does and reads parity straight out of the branch table, so
// an arbitrary (K, generator_polys) pair encodes into exactly what
// this package's own Decode will accept — see DESIGN.md's note on how
// the state/output formulas below were pinned down against Decode's
// add-compare-select addressing, since the teacher's formula doesn't
// generalize across constraint lengths.
//
// At state s (old_state, split as i = s & (butterflies-1), h = s >>
// (k-2)), feeding input bit b moves the register to (i<<1)|b and
// emits, per generator j, branch[j][i] XOR h XOR b — the XOR with h
// is what makes "comp" (maxMetric-metric) the correct cost for the
// alternate source super-state in Decode's ACS step.
func (v *Viterbi) Encode(data []byte, terminated bool) []byte {
	bits := make([]byte, 0, len(data)*8+v.k-1)
	for _, b := range data {
		for shift := 7; shift >= 0; shift-- {
			bits = append(bits, (b>>uint(shift))&1)
		}
	}
	if terminated {
		for i := 0; i < v.k-1; i++ {
			bits = append(bits, 0)
		}
	}

	out := make([]byte, 0, (len(bits)*v.r+7)/8)
	var accum byte
	var accumBits int
	state := 0
	for _, b := range bits {
		i := state & (v.butterflies - 1)
		h := byte(state >> uint(v.k-2))
		for j := 0; j < v.r; j++ {
			raw := byte(0)
			if v.branch[j][i] == v.softHigh {
				raw = 1
			}
			out, accum, accumBits = pushBit(out, accum, accumBits, raw^h^b)
		}
		state = (i << 1) | int(b)
	}
	if accumBits > 0 {
		accum <<= uint(8 - accumBits)
		out = append(out, accum)
	}
	return out
}

func pushBit(out []byte, accum byte, accumBits int, bit byte) ([]byte, byte, int) {
	accum = accum<<1 | bit
	accumBits++
	if accumBits == 8 {
		return append(out, accum), 0, 0
	}
	return out, accum, accumBits
}
