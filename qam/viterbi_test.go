package qam

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

// allZeroSoft returns steps*R soft values all at softLow. Because
// branch[j][0] == softLow for every j (parity(2*0 & poly) == 0 always),
// the all-zero trellis path has zero distance from this input and is
// therefore the unique optimal path: decoding it must return
// all-zero bytes with a zero path metric, independent of any other
// detail of the branch table's addressing.
func allZeroSoft(steps, r int) []float64 {
	return make([]float64, steps*r)
}

func TestViterbi_AllZeroInputDecodesToZeroWithNoError(t *testing.T) {
	v, err := NewViterbi(3, 2, []byte{0x7, 0x5}, 0.0, 1.0, 4096)
	if err != nil {
		t.Fatalf("NewViterbi: %v", err)
	}
	const steps = 100
	decoded, decodedErr, err := v.Decode(allZeroSoft(steps, 2), true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decodedErr != 0 {
		t.Fatalf("decodedError on the all-zero path = %v, want 0", decodedErr)
	}
	for i, b := range decoded {
		if b != 0 {
			t.Fatalf("decoded[%d] = %#x, want 0", i, b)
		}
	}
}

func TestViterbi_ToleratesSingleSoftError(t *testing.T) {
	v, err := NewViterbi(3, 2, []byte{0x7, 0x5}, 0.0, 1.0, 4096)
	if err != nil {
		t.Fatalf("NewViterbi: %v", err)
	}
	rapid.Check(t, func(t *rapid.T) {
		steps := rapid.IntRange(20, 200).Draw(t, "steps")
		flipIdx := rapid.IntRange(0, steps*2-1).Draw(t, "flipIdx")
		flipVal := rapid.Float64Range(0.4, 1.0).Draw(t, "flipVal")

		soft := allZeroSoft(steps, 2)
		soft[flipIdx] = flipVal

		decoded, _, err := v.Decode(soft, true)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		for i, b := range decoded {
			if b != 0 {
				t.Fatalf("single soft error at index %d (value %v) corrupted output: decoded[%d] = %#x", flipIdx, flipVal, i, b)
			}
		}
	})
}

func TestViterbi_RejectsLengthNotMultipleOfCodeRate(t *testing.T) {
	v, err := NewViterbi(3, 2, []byte{0x7, 0x5}, 0.0, 1.0, 256)
	if err != nil {
		t.Fatalf("NewViterbi: %v", err)
	}
	if _, _, err := v.Decode(make([]float64, 5), true); err == nil {
		t.Fatal("expected error decoding a soft slice whose length is not a multiple of R")
	}
}

func TestViterbi_RejectsFrameLongerThanMaxSteps(t *testing.T) {
	v, err := NewViterbi(3, 2, []byte{0x7, 0x5}, 0.0, 1.0, 10)
	if err != nil {
		t.Fatalf("NewViterbi: %v", err)
	}
	if _, _, err := v.Decode(allZeroSoft(20, 2), true); err == nil {
		t.Fatal("expected error decoding a frame longer than maxSteps")
	}
}

func TestViterbi_RenormalizationKeepsFloorAtZero(t *testing.T) {
	v, err := NewViterbi(3, 2, []byte{0x7, 0x5}, 0.0, 1.0, 4096)
	if err != nil {
		t.Fatalf("NewViterbi: %v", err)
	}
	if _, _, err := v.Decode(allZeroSoft(2000, 2), false); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := minOf(v.old); got != 0 {
		t.Fatalf("minimum state metric after renormalization = %v, want 0", got)
	}
}

func TestViterbi_EncodeDecodeRoundTrip(t *testing.T) {
	v, err := NewViterbi(3, 2, []byte{0x7, 0x5}, 0.0, 1.0, 4096)
	if err != nil {
		t.Fatalf("NewViterbi: %v", err)
	}
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(t, "n")
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(rapid.IntRange(0, 255).Draw(t, "byte"))
		}

		wire := v.Encode(data, true)
		soft := bitsToSoft(wire, v.softLow, v.softHigh)
		decoded, decodedErr, err := v.Decode(soft, true)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if decodedErr != 0 {
			t.Fatalf("decodedError on a noiseless encode/decode round trip = %v, want 0", decodedErr)
		}
		if !bytes.Equal(decoded, data) {
			t.Fatalf("round trip: decoded = %x, want %x", decoded, data)
		}
	})
}

func TestViterbi_DeterministicAcrossRepeatedDecodes(t *testing.T) {
	v, err := NewViterbi(3, 2, []byte{0x7, 0x5}, 0.0, 1.0, 256)
	if err != nil {
		t.Fatalf("NewViterbi: %v", err)
	}
	soft := allZeroSoft(50, 2)
	soft[10] = 0.7
	first, firstErr, _ := v.Decode(soft, true)
	second, secondErr, _ := v.Decode(soft, true)
	if !bytes.Equal(first, second) || firstErr != secondErr {
		t.Fatalf("repeated Decode of the same input produced different results")
	}
}
