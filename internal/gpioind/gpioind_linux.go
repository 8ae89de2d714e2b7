//go:build linux

package gpioind

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Open requests chip/line as an output and returns an Indicator driving
// it, following the gpioSetup pattern in m17/modem_gpio_linux.go
// (request the line as an output driven low; no settle delay is
// inserted) but for a single status line instead of the CC1200's three
// reset/boot/PA lines.
func Open(chip string, line int) (*Indicator, error) {
	l, err := gpiocdev.RequestLine(chip, line, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("gpioind: request line %d on %s: %w", line, chip, err)
	}
	return newIndicator(l), nil
}
