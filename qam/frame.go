package qam

import "fmt"

type syncState int

const (
	stateWaitPreamble syncState = iota
	stateWaitBlockSize
	stateWaitPayload
)

// frameOverheadBytes is the length(2) + CRC(1) + tail(1) bytes that
// surround the N payload bytes of a decoded frame.
const frameOverheadBytes = 4

// FrameSynchroniser drives the WAIT_PREAMBLE -> WAIT_BLOCK_SIZE ->
// WAIT_PAYLOAD state machine one symbol at a time, generalized from
// the teacher's Decoder.DecodeSymbols (m17/decoder.go), which dispatches
// on four fixed 46-symbol M17 frame types, into a generic two-pass
// length-prefixed frame: a short prefix decode recovers the payload
// length, then the remaining encoded bytes are decoded with the
// trellis terminated at the known tail state.
type FrameSynchroniser struct {
	cfg Config
	con *Constellation
	pre *PreambleDetector
	scr *Scrambler
	vit *Viterbi
	crc *CRC8

	bitsPerSymbol int
	rotators      []complex128

	st            syncState
	selectedPhase int

	encoded  []byte
	bitAccum byte
	bitCount int

	blockSize     int
	prefixDecoded []byte
	payloadLen    int

	nMin, nMax int
}

// New builds a FrameSynchroniser, validating cfg and constructing each
// pipeline stage in turn.
func New(cfg Config) (*FrameSynchroniser, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	con, err := NewConstellation(cfg.ConstellationL)
	if err != nil {
		return nil, fmt.Errorf("constellation: %w", err)
	}
	pre, err := NewPreambleDetector(con, cfg.PreamblePattern, cfg.PreambleBits, cfg.PhaseHypotheses)
	if err != nil {
		return nil, fmt.Errorf("preamble detector: %w", err)
	}
	scr, err := NewScrambler(cfg.ScramblerSeed, cfg.ScramblerWidth)
	if err != nil {
		return nil, fmt.Errorf("scrambler: %w", err)
	}
	maxSteps := cfg.MaxFrameBytes*8/cfg.CodeRate + cfg.ConstraintLength
	vit, err := NewViterbi(cfg.ConstraintLength, cfg.CodeRate, cfg.GeneratorPolys, cfg.SoftLow, cfg.SoftHigh, maxSteps)
	if err != nil {
		return nil, fmt.Errorf("viterbi decoder: %w", err)
	}

	f := &FrameSynchroniser{
		cfg:           cfg,
		con:           con,
		pre:           pre,
		scr:           scr,
		vit:           vit,
		crc:           NewCRC8(cfg.CRC8Poly),
		bitsPerSymbol: con.BitsPerSymbol(),
		rotators:      pre.Rotators(),
		st:            stateWaitPreamble,
		encoded:       make([]byte, 0, cfg.MaxFrameBytes),
		nMin:          framePrefixBytes/2 - 3,
		nMax:          cfg.MaxFrameBytes/2 - frameOverheadBytes,
	}
	return f, nil
}

// Reset returns the synchroniser to WAIT_PREAMBLE, clearing all
// in-flight frame state.
func (f *FrameSynchroniser) Reset() {
	f.pre.Reset()
	f.st = stateWaitPreamble
	f.resetPayload()
}

// Process consumes a single demodulated symbol and advances the state
// machine by exactly one step.
func (f *FrameSynchroniser) Process(z complex128) Event {
	switch f.st {
	case stateWaitPreamble:
		return f.processPreamble(z)
	case stateWaitBlockSize:
		f.packSymbol(z)
		if len(f.encoded) < framePrefixBytes {
			return Event{Kind: KindNone}
		}
		return f.decodeBlockSize()
	case stateWaitPayload:
		f.packSymbol(z)
		if len(f.encoded) < f.blockSize {
			return Event{Kind: KindNone}
		}
		return f.decodePayload()
	default:
		return Event{Kind: KindNone}
	}
}

func (f *FrameSynchroniser) processPreamble(z complex128) Event {
	res := f.pre.Process(z)
	if !res.Found {
		return Event{Kind: KindNone}
	}
	f.selectedPhase = res.SelectedPhase
	f.scr.Reset()
	f.resetPayload()
	f.st = stateWaitBlockSize
	return Event{
		Kind:           KindPreambleFound,
		SelectedPhase:  res.SelectedPhase,
		PhaseConflict:  res.PhaseConflict,
		DesyncBitcount: res.DesyncBitcount,
	}
}

func (f *FrameSynchroniser) resetPayload() {
	f.encoded = f.encoded[:0]
	f.bitAccum = 0
	f.bitCount = 0
	f.blockSize = 0
	f.prefixDecoded = nil
	f.payloadLen = 0
}

// remainderWireBytes returns the number of encoded bytes a terminated
// trellis encode of n+frameOverheadBytes-framePrefixBytes/2 decoded
// bytes produces on the wire, including Encode's trailing byte-
// alignment padding. Mirrors the arithmetic Encode itself performs so
// blockSize matches the actual transmitted length rather than the
// decoded byte count doubled.
func remainderWireBytes(n, constraintLength, codeRate int) int {
	remainderDataBytes := n + frameOverheadBytes - framePrefixBytes/2
	remainderSteps := remainderDataBytes*8 + (constraintLength - 1)
	remainderBits := remainderSteps * codeRate
	return (remainderBits + 7) / 8
}

// packSymbol rotates z by the latched phase, demaps it to a symbol
// index, and packs the index's bits MSB-first into the encoded byte
// buffer, descrambling each byte as it completes. This is the same
// bit-packing convention used for both the preamble register and the
// payload packer (see DESIGN.md's open-question decision).
func (f *FrameSynchroniser) packSymbol(z complex128) {
	idx := f.con.Nearest(z * f.rotators[f.selectedPhase])
	for shift := f.bitsPerSymbol - 1; shift >= 0; shift-- {
		bit := byte((idx >> uint(shift)) & 1)
		f.bitAccum = f.bitAccum<<1 | bit
		f.bitCount++
		if f.bitCount == 8 {
			f.encoded = append(f.encoded, f.scr.Process(f.bitAccum))
			f.bitAccum = 0
			f.bitCount = 0
		}
	}
}

func bitsToSoft(data []byte, low, high float64) []float64 {
	out := make([]float64, 0, len(data)*8)
	for _, b := range data {
		for shift := 7; shift >= 0; shift-- {
			if (b>>uint(shift))&1 != 0 {
				out = append(out, high)
			} else {
				out = append(out, low)
			}
		}
	}
	return out
}

func (f *FrameSynchroniser) decodeBlockSize() Event {
	soft := bitsToSoft(f.encoded[:framePrefixBytes], f.cfg.SoftLow, f.cfg.SoftHigh)
	decoded, _, err := f.vit.Decode(soft, false)
	if err != nil || len(decoded) < 2 {
		f.st = stateWaitPreamble
		return Event{Kind: KindBlockSizeErr}
	}
	n := int(decoded[0]) | int(decoded[1])<<8
	if n < f.nMin || n > f.nMax {
		f.st = stateWaitPreamble
		return Event{Kind: KindBlockSizeErr}
	}
	f.prefixDecoded = decoded
	f.payloadLen = n
	f.blockSize = framePrefixBytes + remainderWireBytes(n, f.cfg.ConstraintLength, f.cfg.CodeRate)
	f.st = stateWaitPayload
	return Event{Kind: KindBlockSizeOK, PayloadLength: n}
}

func (f *FrameSynchroniser) decodePayload() Event {
	n := f.payloadLen
	remaining := f.encoded[framePrefixBytes:f.blockSize]
	soft := bitsToSoft(remaining, f.cfg.SoftLow, f.cfg.SoftHigh)
	restDecoded, decodedErr, err := f.vit.Decode(soft, true)
	f.st = stateWaitPreamble

	full := make([]byte, 0, framePrefixBytes/2+len(restDecoded))
	full = append(full, f.prefixDecoded[:framePrefixBytes/2]...)
	full = append(full, restDecoded...)

	if err != nil || len(full) < n+frameOverheadBytes {
		return Event{Kind: KindPayloadErr, PayloadLength: n, DecodedError: decodedErr}
	}

	payload := full[2 : 2+n]
	crcReceived := full[2+n]
	crcComputed := f.crc.Process(payload)

	ev := Event{
		PayloadLength: n,
		PayloadBytes:  payload,
		CRCReceived:   crcReceived,
		CRCComputed:   crcComputed,
		DecodedError:  decodedErr,
	}
	if crcReceived == crcComputed {
		ev.Kind = KindPayloadOK
	} else {
		ev.Kind = KindPayloadErr
	}
	return ev
}
