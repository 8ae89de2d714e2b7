package qam

import (
	"bytes"
	"testing"
)

// buildFrameSymbols runs a payload through the same convolutional
// encode / bit-pack / scramble / map-to-symbol chain the sender side
// of this protocol uses, using Viterbi.Encode (qam/encoder.go) so the
// wire bytes are exactly what FrameSynchroniser's Viterbi will decode
// back to payload. The prefix's first 8 bytes are non-terminated
// encoded (matching decodeBlockSize's use of Decode(..., false)); the
// rest is terminated encoded (matching decodePayload's Decode(...,
// true)), mirroring the two-pass split in frame.go itself.
func buildFrameSymbols(t *testing.T, con *Constellation, cfg Config, payload []byte) []complex128 {
	t.Helper()
	n := len(payload)
	if n+frameOverheadBytes < framePrefixBytes/2 {
		t.Fatalf("payload too short for a single prefix decode: n=%d", n)
	}

	maxSteps := cfg.MaxFrameBytes*8/cfg.CodeRate + cfg.ConstraintLength
	vit, err := NewViterbi(cfg.ConstraintLength, cfg.CodeRate, cfg.GeneratorPolys, cfg.SoftLow, cfg.SoftHigh, maxSteps)
	if err != nil {
		t.Fatalf("NewViterbi: %v", err)
	}
	crc := NewCRC8(cfg.CRC8Poly)

	full := make([]byte, 0, n+frameOverheadBytes)
	full = append(full, byte(n), byte(n>>8))
	full = append(full, payload...)
	full = append(full, crc.Process(payload))
	full = append(full, 0) // reserved frame tail byte, see frameOverheadBytes

	wire := vit.Encode(full[:framePrefixBytes/2], false)
	wire = append(wire, vit.Encode(full[framePrefixBytes/2:], true)...)

	scr, err := NewScrambler(cfg.ScramblerSeed, cfg.ScramblerWidth)
	if err != nil {
		t.Fatalf("NewScrambler: %v", err)
	}
	bps := con.BitsPerSymbol()
	syms := make([]complex128, 0, len(wire)*8/bps)
	for _, b := range wire {
		onAir := scr.Process(b)
		for shift := 8 - bps; shift >= 0; shift -= bps {
			idx := int(onAir>>uint(shift)) & ((1 << uint(bps)) - 1)
			syms = append(syms, con.Points()[idx])
		}
	}
	return syms
}

// onAirSymbols scrambles a raw all-zero byte sequence of length n
// using a scrambler with the same seed/width the FrameSynchroniser
// under test will use (freshly reset at each preamble, exactly as
// FrameSynchroniser.processPreamble does). Since scrambling is XOR
// with a keystream, on-air = keystream when raw is all zero, so the
// receiver's own descrambling step is guaranteed to recover all-zero
// encoded bytes without needing to model the convolutional encoder.
func onAirSymbols(t *testing.T, con *Constellation, cfg Config, n int) []complex128 {
	t.Helper()
	scr, err := NewScrambler(cfg.ScramblerSeed, cfg.ScramblerWidth)
	if err != nil {
		t.Fatalf("NewScrambler: %v", err)
	}
	bps := con.BitsPerSymbol()
	syms := make([]complex128, 0, n*8/bps)
	for i := 0; i < n; i++ {
		onAir := scr.Process(0x00)
		for shift := 8 - bps; shift >= 0; shift -= bps {
			idx := int(onAir>>uint(shift)) & ((1 << uint(bps)) - 1)
			syms = append(syms, con.Points()[idx])
		}
	}
	return syms
}

func preamblePointsAtPhase(con *Constellation, cfg Config, rotators []complex128, phase int) []complex128 {
	bps := con.BitsPerSymbol()
	n := cfg.PreambleBits / bps
	syms := make([]complex128, n)
	for i := 0; i < n; i++ {
		shift := cfg.PreambleBits - (i+1)*bps
		idx := int(cfg.PreamblePattern>>uint(shift)) & ((1 << uint(bps)) - 1)
		// pre-rotate by the inverse of the receiver's phase-correction
		// rotation so that, after PreambleDetector applies rotators[phase],
		// the receiver recovers the same idx.
		syms[i] = con.Points()[idx] / rotators[phase]
	}
	return syms
}

func TestFrameSynchroniser_PreambleTransitionsToWaitBlockSize(t *testing.T) {
	cfg := DefaultConfig()
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	con, err := NewConstellation(cfg.ConstellationL)
	if err != nil {
		t.Fatalf("NewConstellation: %v", err)
	}
	pre, err := NewPreambleDetector(con, cfg.PreamblePattern, cfg.PreambleBits, cfg.PhaseHypotheses)
	if err != nil {
		t.Fatalf("NewPreambleDetector: %v", err)
	}

	var last Event
	for _, z := range preamblePointsAtPhase(con, cfg, pre.Rotators(), 0) {
		last = f.Process(z)
	}
	if last.Kind != KindPreambleFound {
		t.Fatalf("Kind = %v, want KindPreambleFound", last.Kind)
	}
	if last.SelectedPhase != 0 {
		t.Fatalf("SelectedPhase = %d, want 0", last.SelectedPhase)
	}
	if f.st != stateWaitBlockSize {
		t.Fatalf("state = %v, want stateWaitBlockSize", f.st)
	}
}

func TestFrameSynchroniser_RejectsBlockSizeBelowMinimum(t *testing.T) {
	cfg := DefaultConfig()
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	con, err := NewConstellation(cfg.ConstellationL)
	if err != nil {
		t.Fatalf("NewConstellation: %v", err)
	}
	pre, err := NewPreambleDetector(con, cfg.PreamblePattern, cfg.PreambleBits, cfg.PhaseHypotheses)
	if err != nil {
		t.Fatalf("NewPreambleDetector: %v", err)
	}

	var last Event
	for _, z := range preamblePointsAtPhase(con, cfg, pre.Rotators(), 0) {
		last = f.Process(z)
	}
	if last.Kind != KindPreambleFound {
		t.Fatalf("preamble not found, got Kind=%v", last.Kind)
	}

	// All-zero raw encoded bytes decode (via the guaranteed all-zero
	// trellis path) to a zero length field, which is below nMin (5).
	for _, z := range onAirSymbols(t, con, cfg, framePrefixBytes) {
		last = f.Process(z)
	}
	if last.Kind != KindBlockSizeErr {
		t.Fatalf("Kind = %v, want KindBlockSizeErr", last.Kind)
	}
	if f.st != stateWaitPreamble {
		t.Fatalf("state after reject = %v, want stateWaitPreamble", f.st)
	}
}

func TestFrameSynchroniser_DecodesPayloadEndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	con, err := NewConstellation(cfg.ConstellationL)
	if err != nil {
		t.Fatalf("NewConstellation: %v", err)
	}
	pre, err := NewPreambleDetector(con, cfg.PreamblePattern, cfg.PreambleBits, cfg.PhaseHypotheses)
	if err != nil {
		t.Fatalf("NewPreambleDetector: %v", err)
	}

	payload := []byte("HELLO")

	var events []Event
	for _, z := range preamblePointsAtPhase(con, cfg, pre.Rotators(), 0) {
		events = append(events, f.Process(z))
	}
	for _, z := range buildFrameSymbols(t, con, cfg, payload) {
		events = append(events, f.Process(z))
	}

	last := events[len(events)-1]
	if last.Kind != KindPayloadOK {
		t.Fatalf("Kind = %v, want KindPayloadOK (decodedErr=%v)", last.Kind, last.DecodedError)
	}
	if !bytes.Equal(last.PayloadBytes, payload) {
		t.Fatalf("PayloadBytes = %q, want %q", last.PayloadBytes, payload)
	}
	if last.CRCReceived != last.CRCComputed {
		t.Fatalf("CRCReceived = %#x, CRCComputed = %#x", last.CRCReceived, last.CRCComputed)
	}
	if last.DecodedError != 0 {
		t.Fatalf("DecodedError = %v, want 0 for a noiseless channel", last.DecodedError)
	}
}

func TestFrameSynchroniser_NoEventBeforePreambleFound(t *testing.T) {
	cfg := DefaultConfig()
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	con, err := NewConstellation(cfg.ConstellationL)
	if err != nil {
		t.Fatalf("NewConstellation: %v", err)
	}
	for i := 0; i < 100; i++ {
		ev := f.Process(con.Points()[i%len(con.Points())])
		if ev.Kind != KindNone {
			t.Fatalf("unexpected event %v before preamble pattern appeared", ev.Kind)
		}
	}
}

func TestFrameSynchroniser_ResetReturnsToWaitPreamble(t *testing.T) {
	cfg := DefaultConfig()
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	con, err := NewConstellation(cfg.ConstellationL)
	if err != nil {
		t.Fatalf("NewConstellation: %v", err)
	}
	pre, err := NewPreambleDetector(con, cfg.PreamblePattern, cfg.PreambleBits, cfg.PhaseHypotheses)
	if err != nil {
		t.Fatalf("NewPreambleDetector: %v", err)
	}
	for _, z := range preamblePointsAtPhase(con, cfg, pre.Rotators(), 0) {
		f.Process(z)
	}
	if f.st != stateWaitBlockSize {
		t.Fatalf("precondition: state = %v, want stateWaitBlockSize", f.st)
	}
	f.Reset()
	if f.st != stateWaitPreamble {
		t.Fatalf("state after Reset = %v, want stateWaitPreamble", f.st)
	}
}
