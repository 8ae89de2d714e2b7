package symsource

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialConfig parametrizes the serial-attached modem source, trimmed
// from m17/modem.go's NewCC1200Modem down to the fields a generic
// QAM demodulator front end still needs (port and baud rate); the
// CC1200-specific GPIO reset lines and RRC filter chain are out of
// scope and live on in internal/gpioind instead.
type SerialConfig struct {
	Port     string
	BaudRate int
}

type serialSource struct {
	*readerSource
	port serial.Port
}

// OpenSerial opens a serial-attached modem and streams the I/Q symbol
// pairs it emits. Grounded on m17/modem.go:NewCC1200Modem's
// serial.Open call, generalized from the CC1200 command protocol to a
// bare symbol stream.
func OpenSerial(cfg SerialConfig) (Source, error) {
	mode := &serial.Mode{BaudRate: cfg.BaudRate}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("symsource: open serial port %s: %w", cfg.Port, err)
	}
	return &serialSource{
		readerSource: newReaderSource(port, 1024),
		port:         port,
	}, nil
}
