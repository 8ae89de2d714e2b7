//go:build !linux

package gpioind

import "fmt"

// Open returns an error on non-Linux platforms; gpiocdev only binds to
// the Linux GPIO character device ABI, same restriction the teacher's
// modem_gpio_linux.go build tag encodes.
func Open(chip string, line int) (*Indicator, error) {
	return nil, fmt.Errorf("gpioind: GPIO line control requires linux (chip=%s line=%d)", chip, line)
}
