// Package serial adapts a real serial port into an xymodem.Channel.
package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/xx25/go-xymodem"
)

// Config describes how to open and drive the serial port.
type Config struct {
	Port     string
	BaudRate int
	// ReadTimeout bounds a single ReadByte call. go.bug.st/serial reports
	// a timed-out read as a zero-length, error-free Read, which Channel
	// translates into xymodem.ErrTimeout.
	ReadTimeout time.Duration
}

func (c Config) defaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = 115200
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	return c
}

// Channel is an xymodem.Channel backed by a go.bug.st/serial.Port.
// It does not wrap the port in a bufio.Reader: go.bug.st/serial reports
// a timed-out Read as (0, nil), which bufio's fill loop would retry
// many times before giving up; Channel instead converts each such read
// directly into xymodem.ErrTimeout.
type Channel struct {
	port serial.Port
	one  [1]byte
}

var _ xymodem.Channel = (*Channel)(nil)

// Open opens cfg.Port at cfg.BaudRate with 8N1 framing and a read
// timeout applied once for the life of the port.
func Open(cfg Config) (*Channel, error) {
	cfg = cfg.defaults()
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Port, err)
	}
	return &Channel{port: port}, nil
}

// Close releases the underlying port.
func (c *Channel) Close() error {
	return c.port.Close()
}

// Write writes p in full.
func (c *Channel) Write(p []byte) error {
	_, err := c.port.Write(p)
	return err
}

// ReadByte reads one byte, reporting the port's read-timeout expiry as
// xymodem.ErrTimeout.
func (c *Channel) ReadByte() (byte, error) {
	n, err := c.port.Read(c.one[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, xymodem.ErrTimeout
	}
	return c.one[0], nil
}
