// Package serial opens the link to the encoder firmware.
package serial

import (
	"errors"
	"io"
	"time"
)

var ErrNoDevice = errors.New("serial: no device configured")

// Port is the byte stream the host transport runs over. Tests substitute
// an in-memory pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path, e.g. "/dev/ttyACM0" or "COM3"
	Device string

	// USB CDC ignores the baud rate; UART bridges need it
	Baud int

	// ReadTimeout bounds each Read so the reader can notice Close.
	// 0 blocks.
	ReadTimeout time.Duration
}

// DefaultConfig returns settings matching the firmware's USB CDC port
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
	}
}
