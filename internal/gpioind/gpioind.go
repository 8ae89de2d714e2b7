// Package gpioind drives a GPIO line as an on-air indicator: asserted
// while qamrx-gateway is actively decoding a frame, deasserted in
// WAIT_PREAMBLE. Adapted from m17/modem.go's setPAEnableGPIO/setNRSTGPIO
// (transmit-side PA keying and modem reset lines), repurposed here for a
// receive-side status line.
package gpioind

// Line is the subset of gpiocdev.Line this package drives; satisfied by
// *gpiocdev.Line on linux and by a no-op stub elsewhere.
type Line interface {
	SetValue(value int) error
	Close() error
}

// Indicator toggles a Line on and off to reflect decoder activity.
type Indicator struct {
	line Line
}

func newIndicator(line Line) *Indicator {
	return &Indicator{line: line}
}

// On asserts the indicator line.
func (ind *Indicator) On() error {
	if ind.line == nil {
		return nil
	}
	return ind.line.SetValue(1)
}

// Off deasserts the indicator line.
func (ind *Indicator) Off() error {
	if ind.line == nil {
		return nil
	}
	return ind.line.SetValue(0)
}

// Close releases the underlying GPIO line.
func (ind *Indicator) Close() error {
	if ind.line == nil {
		return nil
	}
	return ind.line.Close()
}
