package xymodem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// XModemConfig holds the per-call tunables for XModemSend and
// XModemReceive. Zero fields get defaults filled in by the engine, and a
// nil *XModemConfig means all defaults (128-byte blocks for the sender).
type XModemConfig struct {
	// MaxErrors caps the main-phase soft-error counter (default 16).
	MaxErrors int
	// MaxInitialErrors caps the probe-phase counter (default 16).
	MaxInitialErrors int
	// PadByte fills the tail of a short final packet (default 0x1A).
	PadByte byte
	// BlockLength is the sender's packet payload size: 128 or 1024.
	// Unused by the receiver, which accepts either size per packet.
	BlockLength int
	// ChecksumMode is the sender's chosen verification scheme, set by
	// the handshake rather than by the caller; the zero value is
	// overwritten once the receiver's poll byte is seen.
	ChecksumMode ChecksumMode

	// Logger receives debug/warn traces. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c *XModemConfig) defaults() {
	if c.MaxErrors <= 0 {
		c.MaxErrors = 16
	}
	if c.MaxInitialErrors <= 0 {
		c.MaxInitialErrors = 16
	}
	if c.PadByte == 0 {
		c.PadByte = defaultPadByte
	}
	if c.BlockLength != blockSize1024 {
		c.BlockLength = blockSize128
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// XModemReceive drives the XMODEM receiver state machine: it probes for
// a header using the given checksum mode, accepts SOH/STX data packets
// in strict sequence, and writes every accepted payload byte (including
// any trailing pad bytes of the final packet — XMODEM has no length
// framing) to sink.
func XModemReceive(ctx context.Context, ch Channel, sink io.Writer, mode ChecksumMode, cfg *XModemConfig) error {
	var c XModemConfig
	if cfg != nil {
		c = *cfg
	}
	c.ChecksumMode = mode
	c.defaults()
	budget := newErrorBudget(c.MaxInitialErrors, c.MaxErrors)
	budget.reset()
	logger := c.Logger

	expected := byte(1)
	haveFirst := false

	poll := NAK
	if mode == ChecksumCRC16 {
		poll = C
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !haveFirst {
			if err := ch.Write([]byte{poll}); err != nil {
				return err
			}
		}

		b, err := ch.ReadByte()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				if !haveFirst {
					if budget.bumpInitial() {
						return ErrExhaustedRetries
					}
					continue
				}
				if budget.bumpMain() {
					return ErrExhaustedRetries
				}
				continue
			}
			return err
		}

		switch b {
		case SOH, STX:
			haveFirst = true
			done, err := xmodemHandlePacket(ch, sink, b, &expected, mode, &c, budget, logger)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		case EOT:
			if !haveFirst {
				// EOT before any data packet: treat like any other
				// unexpected probe reply.
				if budget.bumpInitial() {
					return ErrExhaustedRetries
				}
				continue
			}
			if err := ch.Write([]byte{ACK}); err != nil {
				return err
			}
			return nil

		default:
			logger.Debug("xmodem receive: unexpected byte", "byte", fmt.Sprintf("0x%02x", b))
			if !haveFirst {
				if budget.bumpInitial() {
					return ErrExhaustedRetries
				}
			}
			// Once the first packet has been seen, an unrecognized byte is
			// ignored outright: only a timeout counts against the budget
			// in this phase.
		}
	}
}

// xmodemHandlePacket reads the remainder of one data packet (header byte
// already consumed), validates sequencing and verification, and either
// appends the payload to sink and advances expected, or NAKs for a
// retry. done is true once a terminal condition (none here; kept for
// symmetry with the probe loop's EOT handling) is reached.
func xmodemHandlePacket(ch Channel, sink io.Writer, header byte, expected *byte, mode ChecksumMode, c *XModemConfig, budget *errorBudget, logger *slog.Logger) (done bool, err error) {
	size, err := payloadSize(header)
	if err != nil {
		return false, err
	}

	seq, comp, payload, ver, err := readPacketFields(ch, size, mode)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			if budget.bumpMain() {
				return false, ErrExhaustedRetries
			}
			return false, nil
		}
		return false, err
	}

	if seq != *expected || comp != 0xFF-seq {
		logger.Debug("xmodem receive: sequence mismatch, canceling",
			"expected", *expected, "got", seq, "complement", comp)
		_ = ch.Write([]byte{CAN, CAN})
		return false, ErrCanceled
	}

	if !verify(mode, payload, ver) {
		if err := ch.Write([]byte{NAK}); err != nil {
			return false, err
		}
		if budget.bumpMain() {
			return false, ErrExhaustedRetries
		}
		return false, nil
	}

	if _, err := sink.Write(payload); err != nil {
		return false, err
	}
	if err := ch.Write([]byte{ACK}); err != nil {
		return false, err
	}
	*expected++
	return false, nil
}

// XModemSend drives the XMODEM sender state machine: it waits for the
// receiver's handshake byte to learn the checksum mode, then reads up to
// Config.BlockLength bytes at a time from src, framing and transmitting
// each as a packet until src is exhausted, finishing with EOT.
func XModemSend(ctx context.Context, ch Channel, src io.Reader, cfg *XModemConfig) error {
	var c XModemConfig
	if cfg != nil {
		c = *cfg
	}
	c.defaults()
	budget := newErrorBudget(c.MaxInitialErrors, c.MaxErrors)
	budget.reset()
	logger := c.Logger

	mode, err := xmodemHandshake(ctx, ch, budget)
	if err != nil {
		return err
	}
	c.ChecksumMode = mode

	block := byte(0)
	buf := make([]byte, c.BlockLength)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := io.ReadFull(src, buf)
		if n == 0 {
			if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
				return readErr
			}
			break
		}

		block++
		payload := padded(buf[:n], c.BlockLength, c.PadByte)
		header := SOH
		if c.BlockLength == blockSize1024 {
			header = STX
		}
		pkt := buildPacket(header, block, payload, mode)

		for {
			if err := ch.Write(pkt); err != nil {
				return err
			}
			resp, err := ch.ReadByte()
			if err != nil {
				if errors.Is(err, ErrTimeout) {
					if budget.bumpMain() {
						return ErrExhaustedRetries
					}
					continue
				}
				return err
			}
			if resp == ACK {
				break
			}
			logger.Debug("xmodem send: packet not ACKed", "byte", fmt.Sprintf("0x%02x", resp))
			if budget.bumpMain() {
				return ErrExhaustedRetries
			}
		}

		if readErr != nil && (readErr == io.EOF || readErr == io.ErrUnexpectedEOF) {
			break
		}
	}

	for {
		if err := ch.Write([]byte{EOT}); err != nil {
			return err
		}
		resp, err := ch.ReadByte()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				if budget.bumpMain() {
					return ErrExhaustedRetries
				}
				continue
			}
			return err
		}
		if resp == ACK {
			return nil
		}
		if budget.bumpMain() {
			return ErrExhaustedRetries
		}
	}
}

// xmodemHandshake waits for the receiver's poll byte (NAK or C),
// selecting the checksum mode accordingly. Two CAN bytes in a row abort
// with ErrCanceled; anything else or a timeout counts against the
// main budget.
func xmodemHandshake(ctx context.Context, ch Channel, budget *errorBudget) (ChecksumMode, error) {
	canRun := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		b, err := ch.ReadByte()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				if budget.bumpMain() {
					_ = ch.Write([]byte{CAN})
					return 0, ErrExhaustedRetries
				}
				continue
			}
			return 0, err
		}

		switch b {
		case NAK:
			return ChecksumAdditive, nil
		case C:
			return ChecksumCRC16, nil
		case CAN:
			canRun++
			if canRun >= 2 {
				return 0, ErrCanceled
			}
		default:
			canRun = 0
			if budget.bumpMain() {
				_ = ch.Write([]byte{CAN})
				return 0, ErrExhaustedRetries
			}
		}
	}
}
