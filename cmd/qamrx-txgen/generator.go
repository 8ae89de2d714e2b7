package main

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/n1adj/qamrx/qam"
)

const framePrefixHalfBytes = 8 // matches qam.framePrefixBytes/2

// generator builds one on-air symbol stream per payload the same way
// qam/frame_test.go's buildFrameSymbols does: length-prefix + payload +
// CRC run through Viterbi.Encode (the prefix half non-terminated, the
// remainder terminated, matching frame.go's two-pass decode split),
// then bit-packed and scrambled before mapping to constellation points.
// Grounded on m17/modem.go:TransmitPacket for the overall "build wire
// bytes, then hand them to a symbol-emitting stage" shape.
type generator struct {
	cfg qam.Config
	con *qam.Constellation
	vit *qam.Viterbi
	crc *qam.CRC8
}

func newGenerator(cfg qam.Config) (*generator, error) {
	con, err := qam.NewConstellation(cfg.ConstellationL)
	if err != nil {
		return nil, fmt.Errorf("constellation: %w", err)
	}
	maxSteps := cfg.MaxFrameBytes*8/cfg.CodeRate + cfg.ConstraintLength
	vit, err := qam.NewViterbi(cfg.ConstraintLength, cfg.CodeRate, cfg.GeneratorPolys, cfg.SoftLow, cfg.SoftHigh, maxSteps)
	if err != nil {
		return nil, fmt.Errorf("viterbi: %w", err)
	}
	return &generator{
		cfg: cfg,
		con: con,
		vit: vit,
		crc: qam.NewCRC8(cfg.CRC8Poly),
	}, nil
}

// writeQuiet emits n symbols at the constellation's zero-crossing
// point (the (0,0) I/Q pair), giving the receiver's preamble detector
// dead air to resync against between packets.
func (g *generator) writeQuiet(w io.Writer, n int) error {
	for i := 0; i < n; i++ {
		if err := writeSymbol(w, 0); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) writeFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty payload")
	}
	preSyms, err := g.preambleSymbols()
	if err != nil {
		return err
	}
	for _, z := range preSyms {
		if err := writeSymbol(w, z); err != nil {
			return err
		}
	}

	n := len(payload)
	full := make([]byte, 0, n+4)
	full = append(full, byte(n), byte(n>>8))
	full = append(full, payload...)
	full = append(full, g.crc.Process(payload))
	full = append(full, 0) // reserved frame tail byte, see qam.frameOverheadBytes

	if len(full) <= framePrefixHalfBytes {
		return fmt.Errorf("payload of %d bytes too short for the frame prefix", n)
	}
	wire := g.vit.Encode(full[:framePrefixHalfBytes], false)
	wire = append(wire, g.vit.Encode(full[framePrefixHalfBytes:], true)...)

	scr, err := qam.NewScrambler(g.cfg.ScramblerSeed, g.cfg.ScramblerWidth)
	if err != nil {
		return fmt.Errorf("scrambler: %w", err)
	}
	bps := g.con.BitsPerSymbol()
	mask := (1 << uint(bps)) - 1
	for _, b := range wire {
		onAir := scr.Process(b)
		for shift := 8 - bps; shift >= 0; shift -= bps {
			idx := int(onAir>>uint(shift)) & mask
			if err := writeSymbol(w, g.con.Points()[idx]); err != nil {
				return err
			}
		}
	}
	return nil
}

// preambleSymbols packs the configured preamble bit pattern (MSB-first,
// per SPEC_FULL.md's bit-packing rule) directly onto constellation
// points with no phase pre-rotation; the receiver's PreambleDetector
// tests all phaseHypotheses rotations against every incoming symbol, so
// an unrotated transmission matches its phase-0 hypothesis.
func (g *generator) preambleSymbols() ([]complex128, error) {
	bps := g.con.BitsPerSymbol()
	n := g.cfg.PreambleBits / bps
	if n*bps != g.cfg.PreambleBits {
		return nil, fmt.Errorf("preamble_bits %d is not a multiple of the constellation's %d bits/symbol", g.cfg.PreambleBits, bps)
	}
	mask := (1 << uint(bps)) - 1
	syms := make([]complex128, n)
	for i := 0; i < n; i++ {
		shift := g.cfg.PreambleBits - (i+1)*bps
		idx := int(g.cfg.PreamblePattern>>uint(shift)) & mask
		syms[i] = g.con.Points()[idx]
	}
	return syms, nil
}

func writeSymbol(w io.Writer, z complex128) error {
	v := struct{ I, Q float32 }{float32(real(z)), float32(imag(z))}
	return binary.Write(w, binary.LittleEndian, v)
}
