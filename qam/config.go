package qam

import "fmt"

// Config parametrizes every stage of the receive pipeline: the
// constellation, the preamble detector, the scrambler, and the
// convolutional code the Viterbi decoder expects.
type Config struct {
	PreamblePattern uint32 `yaml:"preamble_pattern"`
	PreambleBits    int    `yaml:"preamble_bits"`
	PhaseHypotheses int    `yaml:"phase_hypotheses"`

	ScramblerSeed  uint16 `yaml:"scrambler_seed"`
	ScramblerWidth int    `yaml:"scrambler_width"`

	CRC8Poly byte `yaml:"crc8_poly"`

	ConstraintLength int    `yaml:"constraint_length"`
	CodeRate         int    `yaml:"code_rate"`
	GeneratorPolys   []byte `yaml:"generator_polys"`

	ConstellationL int `yaml:"constellation_l"`

	MaxFrameBytes int `yaml:"max_frame_bytes"`

	SoftLow  float64 `yaml:"soft_low"`
	SoftHigh float64 `yaml:"soft_high"`
}

// DefaultConfig returns the reference 16-QAM / rate-1/2 / K=3
// parameters used by the bundled test vectors and cmd/qamrx-txgen.
func DefaultConfig() Config {
	return Config{
		PreamblePattern:  0xF9AFCD6D,
		PreambleBits:     32,
		PhaseHypotheses:  4,
		ScramblerSeed:    0x8559,
		ScramblerWidth:   16,
		CRC8Poly:         0xD5,
		ConstraintLength: 3,
		CodeRate:         2,
		GeneratorPolys:   []byte{0x7, 0x5},
		ConstellationL:   4,
		MaxFrameBytes:    256,
		SoftLow:          0.0,
		SoftHigh:         1.0,
	}
}

const framePrefixBytes = 16

func (c Config) validate() error {
	if c.PreambleBits <= 0 || c.PreambleBits > 32 {
		return fmt.Errorf("preamble_bits must be in (0,32], got %d", c.PreambleBits)
	}
	if c.PhaseHypotheses <= 0 {
		return fmt.Errorf("phase_hypotheses must be positive, got %d", c.PhaseHypotheses)
	}
	if c.ScramblerWidth <= 0 || c.ScramblerWidth > 32 {
		return fmt.Errorf("scrambler_width must be in (0,32], got %d", c.ScramblerWidth)
	}
	if c.ConstraintLength < 3 {
		return fmt.Errorf("constraint_length must be >= 3, got %d", c.ConstraintLength)
	}
	if c.CodeRate < 1 || len(c.GeneratorPolys) != c.CodeRate {
		return fmt.Errorf("need exactly code_rate=%d generator polynomials, got %d", c.CodeRate, len(c.GeneratorPolys))
	}
	if c.ConstellationL < 2 {
		return fmt.Errorf("constellation_l must be >= 2, got %d", c.ConstellationL)
	}
	if c.MaxFrameBytes < 2*framePrefixBytes {
		return fmt.Errorf("max_frame_bytes must be >= %d, got %d", 2*framePrefixBytes, c.MaxFrameBytes)
	}
	if !(c.SoftLow < c.SoftHigh) {
		return fmt.Errorf("soft_low (%v) must be < soft_high (%v)", c.SoftLow, c.SoftHigh)
	}
	return nil
}
