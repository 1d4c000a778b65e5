package xymodem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"
)

// YModemConfig holds the per-call tunables for YModemSend and
// YModemReceive. A zero value gets defaults filled in by the engine.
type YModemConfig struct {
	// MaxErrors caps the main-phase soft-error counter (default 16).
	MaxErrors int
	// MaxInitialErrors caps the probe-phase counter (default 16).
	MaxInitialErrors int
	// PadByte fills the tail of a short final data packet (default 0x1A).
	// The header and end-frame packets are always zero-padded regardless
	// of this setting, per the wire format.
	PadByte byte
	// IgnoreNonDigitsOnFileSize strips non-digit characters from the
	// header packet's size field before parsing it, tolerating senders
	// that append trailing garbage (default false).
	IgnoreNonDigitsOnFileSize bool

	// Logger receives debug/warn traces. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c *YModemConfig) defaults() {
	if c.MaxErrors <= 0 {
		c.MaxErrors = 16
	}
	if c.MaxInitialErrors <= 0 {
		c.MaxInitialErrors = 16
	}
	if c.PadByte == 0 {
		c.PadByte = defaultPadByte
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// marshalYmodemHeader builds the 128-byte header-packet payload:
// filename, one zero byte, decimal file size, one zero byte, the
// remainder zero-filled. The cursor advances per field so later fields
// never overwrite earlier ones.
func marshalYmodemHeader(name string, size int64) []byte {
	buf := make([]byte, blockSize128)
	i := 0
	i += copy(buf[i:], name)
	buf[i] = 0
	i++
	i += copy(buf[i:], strconv.FormatInt(size, 10))
	buf[i] = 0
	return buf
}

// parseYmodemHeaderPayload decodes a header-packet payload into a
// filename and file size, applying the size-parsing fallback rules from
// spec §4.6: try the whole field as a decimal integer; on failure, take
// the prefix up to the first space and, if ignoreNonDigits is set,
// strip non-digit characters before parsing.
func parseYmodemHeaderPayload(payload []byte, ignoreNonDigits bool) (name string, size uint64, err error) {
	nullIdx := bytes.IndexByte(payload, 0)
	if nullIdx < 0 {
		return "", 0, fmt.Errorf("ymodem: header packet missing filename terminator")
	}
	nameBytes := payload[:nullIdx]
	if !utf8.Valid(nameBytes) {
		return "", 0, fmt.Errorf("ymodem: filename is not valid UTF-8")
	}
	name = string(nameBytes)

	rest := payload[nullIdx+1:]
	if end := bytes.IndexByte(rest, 0); end >= 0 {
		rest = rest[:end]
	}
	sizeStr := string(rest)

	size, err = parseYmodemFileSize(sizeStr, ignoreNonDigits)
	if err != nil {
		return "", 0, fmt.Errorf("ymodem: parse file size %q: %w", sizeStr, err)
	}
	return name, size, nil
}

func parseYmodemFileSize(s string, ignoreNonDigits bool) (uint64, error) {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}

	field := s
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		field = s[:idx]
	}
	if ignoreNonDigits {
		var b strings.Builder
		for _, r := range field {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		field = b.String()
	}
	if field == "" {
		return 0, nil
	}
	return strconv.ParseUint(field, 10, 64)
}

// YModemReceive drives the YMODEM receiver state machine: it probes for
// the header packet, parses the filename and size it carries, then
// receives data packets into an internal buffer and delivers exactly
// size bytes of it to sink, discarding any packet padding beyond that.
func YModemReceive(ctx context.Context, ch Channel, sink io.Writer, cfg *YModemConfig) (filename string, size uint64, err error) {
	var c YModemConfig
	if cfg != nil {
		c = *cfg
	}
	c.defaults()
	budget := newErrorBudget(c.MaxInitialErrors, c.MaxErrors)
	budget.reset()
	logger := c.Logger

	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	if err := ymodemProbeForSOH(ctx, ch, budget); err != nil {
		return "", 0, err
	}

	filename, size, err = ymodemReadHeaderBody(ctx, ch, &c, budget, logger)
	if err != nil {
		return "", 0, err
	}

	buf, err := ymodemReceiveDataPhase(ctx, ch, size, budget, logger)
	if err != nil {
		return filename, size, err
	}

	n := uint64(len(buf))
	if size < n {
		n = size
	}
	if _, err := sink.Write(buf[:n]); err != nil {
		return filename, size, err
	}
	return filename, size, nil
}

// ymodemProbeForSOH sends C repeatedly until the header packet's SOH
// byte arrives. Non-SOH bytes and timeouts count against the initial
// budget; any other read error is returned at once.
func ymodemProbeForSOH(ctx context.Context, ch Channel, budget *errorBudget) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ch.Write([]byte{C}); err != nil {
			return err
		}
		b, err := ch.ReadByte()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				if budget.bumpInitial() {
					return ErrExhaustedRetries
				}
				continue
			}
			return err
		}
		if b == SOH {
			return nil
		}
		if budget.bumpInitial() {
			return ErrExhaustedRetries
		}
	}
}

// ymodemReadHeaderBody reads and parses the header packet, retrying on
// CRC failure by waiting for the sender to resend SOH. Its own SOH has
// already been consumed by ymodemProbeForSOH.
func ymodemReadHeaderBody(ctx context.Context, ch Channel, c *YModemConfig, budget *errorBudget, logger *slog.Logger) (string, uint64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		seq, comp, payload, ver, err := readPacketFields(ch, blockSize128, ChecksumCRC16)
		if err != nil {
			if !errors.Is(err, ErrTimeout) {
				return "", 0, err
			}
			if budget.bumpMain() {
				return "", 0, ErrExhaustedRetries
			}
		} else if seq != 0 || comp != 0xFF {
			_ = ch.Write([]byte{CAN, CAN})
			return "", 0, ErrCanceled
		} else if !verify(ChecksumCRC16, payload, ver) {
			if err := ch.Write([]byte{NAK}); err != nil {
				return "", 0, err
			}
			if budget.bumpMain() {
				return "", 0, ErrExhaustedRetries
			}
		} else {
			name, size, perr := parseYmodemHeaderPayload(payload, c.IgnoreNonDigitsOnFileSize)
			if perr != nil {
				logger.Debug("ymodem receive: header parse failed, canceling", "err", perr)
				_ = ch.Write([]byte{CAN, CAN})
				return "", 0, ErrCanceled
			}
			if err := ch.Write([]byte{ACK}); err != nil {
				return "", 0, err
			}
			if err := ch.Write([]byte{C}); err != nil {
				return "", 0, err
			}
			return name, size, nil
		}

		if err := ymodemWaitForByte(ctx, ch, SOH, false, budget, nil); err != nil {
			return "", 0, err
		}
	}
}

// ymodemReceiveDataPhase receives data packets and the double-EOT
// handshake, returning the concatenated payloads (including any packet
// padding — the caller trims to the advertised file size). The loop
// tolerates sender re-sends of the trailing end frame, bounded by
// expected-packet-count + 3 iterations.
func ymodemReceiveDataPhase(ctx context.Context, ch Channel, fileSize uint64, budget *errorBudget, logger *slog.Logger) ([]byte, error) {
	var buf []byte
	expected := byte(1)
	firstEOT := false
	awaitingEndFrame := false

	expectedPackets := 0
	if fileSize > 0 {
		expectedPackets = int((fileSize + 1023) / 1024)
	}
	maxIter := expectedPackets + 3

	for iter := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b, err := ch.ReadByte()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				if budget.bumpMain() {
					return nil, ErrExhaustedRetries
				}
				continue
			}
			return nil, err
		}

		switch b {
		case SOH, STX:
			iter++
			if iter > maxIter {
				return nil, ErrExhaustedRetries
			}

			size, _ := payloadSize(b)
			seq, comp, payload, ver, perr := readPacketFields(ch, size, ChecksumCRC16)
			if perr != nil {
				if !errors.Is(perr, ErrTimeout) {
					return nil, perr
				}
				if budget.bumpMain() {
					return nil, ErrExhaustedRetries
				}
				continue
			}

			wantSeq := expected
			if awaitingEndFrame {
				wantSeq = 0
			}
			if seq != wantSeq || comp != 0xFF-seq {
				logger.Debug("ymodem receive: sequence mismatch, canceling",
					"want", wantSeq, "got", seq)
				_ = ch.Write([]byte{CAN, CAN})
				return nil, ErrCanceled
			}

			if !verify(ChecksumCRC16, payload, ver) {
				if err := ch.Write([]byte{NAK}); err != nil {
					return nil, err
				}
				if budget.bumpMain() {
					return nil, ErrExhaustedRetries
				}
				continue
			}

			if err := ch.Write([]byte{ACK}); err != nil {
				return nil, err
			}

			if awaitingEndFrame {
				return buf, nil
			}
			buf = append(buf, payload...)
			expected++

		case EOT:
			if !firstEOT {
				firstEOT = true
				if err := ch.Write([]byte{NAK}); err != nil {
					return nil, err
				}
				continue
			}
			if err := ch.Write([]byte{ACK}); err != nil {
				return nil, err
			}
			if err := ch.Write([]byte{C}); err != nil {
				return nil, err
			}
			awaitingEndFrame = true

		default:
			logger.Debug("ymodem receive: unexpected byte", "byte", fmt.Sprintf("0x%02x", b))
			if budget.bumpMain() {
				return nil, ErrExhaustedRetries
			}
		}
	}
}

// YModemSend drives the YMODEM sender state machine: it sends the
// header frame (filename, decimal size), then STX data frames read from
// src, then the double-EOT handshake and a zero end frame.
func YModemSend(ctx context.Context, ch Channel, src io.Reader, filename string, size int64, cfg *YModemConfig) error {
	var c YModemConfig
	if cfg != nil {
		c = *cfg
	}
	c.defaults()
	budget := newErrorBudget(c.MaxInitialErrors, c.MaxErrors)
	budget.reset()
	logger := c.Logger

	if err := ymodemWaitForByte(ctx, ch, C, true, budget, func() { _ = ch.Write([]byte{CAN}) }); err != nil {
		return err
	}

	headerPkt := buildPacket(SOH, 0, marshalYmodemHeader(filename, size), ChecksumCRC16)
	if err := ymodemSendPacketAwaitAck(ctx, ch, headerPkt, budget, logger); err != nil {
		return err
	}
	if err := ymodemWaitForByte(ctx, ch, C, false, budget, nil); err != nil {
		return err
	}

	block := byte(1)
	buf := make([]byte, blockSize1024)
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

		data := padded(buf[:n], blockSize1024, c.PadByte)
		pkt := buildPacket(STX, block, data, ChecksumCRC16)
		if err := ymodemSendPacketAwaitAck(ctx, ch, pkt, budget, logger); err != nil {
			return err
		}
		block++

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
	}

	if err := ymodemFinish(ctx, ch, budget); err != nil {
		return err
	}

	if err := ymodemWaitForByte(ctx, ch, C, false, budget, nil); err != nil {
		return err
	}

	endPkt := buildPacket(SOH, 0, make([]byte, blockSize128), ChecksumCRC16)
	return ymodemSendPacketAwaitAck(ctx, ch, endPkt, budget, logger)
}

// ymodemFinish runs the double-EOT handshake: write EOT; a NAK reply
// means "send it again", an ACK reply means the receiver is satisfied.
func ymodemFinish(ctx context.Context, ch Channel, budget *errorBudget) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ch.Write([]byte{EOT}); err != nil {
			return err
		}
		b, err := ymodemReadByteRetry(ctx, ch, budget)
		if err != nil {
			return err
		}
		switch b {
		case ACK:
			return nil
		case NAK:
			if err := ch.Write([]byte{EOT}); err != nil {
				return err
			}
			b2, err := ymodemReadByteRetry(ctx, ch, budget)
			if err != nil {
				return err
			}
			if b2 == ACK {
				return nil
			}
			if budget.bumpMain() {
				return ErrExhaustedRetries
			}
		default:
			if budget.bumpMain() {
				return ErrExhaustedRetries
			}
		}
	}
}

// ymodemSendPacketAwaitAck writes pkt and waits for ACK, resending pkt
// on NAK, an unexpected byte, or a timeout until the main budget is
// exhausted.
func ymodemSendPacketAwaitAck(ctx context.Context, ch Channel, pkt []byte, budget *errorBudget, logger *slog.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ch.Write(pkt); err != nil {
			return err
		}
		b, err := ch.ReadByte()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				if budget.bumpMain() {
					return ErrExhaustedRetries
				}
				continue
			}
			return err
		}
		if b == ACK {
			return nil
		}
		logger.Debug("ymodem send: packet not ACKed", "byte", fmt.Sprintf("0x%02x", b))
		if budget.bumpMain() {
			return ErrExhaustedRetries
		}
	}
}

// ymodemReadByteRetry reads one byte, retrying on timeout until the main
// budget is exhausted.
func ymodemReadByteRetry(ctx context.Context, ch Channel, budget *errorBudget) (byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		b, err := ch.ReadByte()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				if budget.bumpMain() {
					return 0, ErrExhaustedRetries
				}
				continue
			}
			return 0, err
		}
		return b, nil
	}
}

// ymodemWaitForByte blocks until want is read, retrying on any other
// byte or a timeout against the main budget. If detectCancel is set, two
// consecutive CAN bytes return ErrCanceled. onExhausted, if non-nil, runs
// once before returning ErrExhaustedRetries (e.g. to write a final CAN).
func ymodemWaitForByte(ctx context.Context, ch Channel, want byte, detectCancel bool, budget *errorBudget, onExhausted func()) error {
	canRun := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := ch.ReadByte()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				if budget.bumpMain() {
					if onExhausted != nil {
						onExhausted()
					}
					return ErrExhaustedRetries
				}
				continue
			}
			return err
		}
		if b == want {
			return nil
		}
		if detectCancel && b == CAN {
			canRun++
			if canRun >= 2 {
				return ErrCanceled
			}
			continue
		}
		canRun = 0
		if budget.bumpMain() {
			if onExhausted != nil {
				onExhausted()
			}
			return ErrExhaustedRetries
		}
	}
}
