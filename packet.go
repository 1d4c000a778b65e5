package xymodem

import "fmt"

// buildPacket assembles the on-wire bytes for one data packet: header,
// sequence, sequence-complement, payload (already padded to the header's
// implied size), and verification field.
func buildPacket(header, seq byte, payload []byte, mode ChecksumMode) []byte {
	out := make([]byte, 0, 3+len(payload)+2)
	out = append(out, header, seq, 0xFF-seq)
	out = append(out, payload...)
	out = append(out, verificationBytes(mode, payload)...)
	return out
}

// readPacketFields reads the sequence byte, its complement, the size
// payload bytes, and the verification field (1 or 2 bytes depending on
// mode) that follow a header byte already consumed by the caller. It
// performs no interpretation beyond raw reads — sequence validation and
// checksum verification are the caller's responsibility, since XMODEM
// and YMODEM react to mismatches differently.
func readPacketFields(ch Channel, size int, mode ChecksumMode) (seq, comp byte, payload, ver []byte, err error) {
	seq, err = ch.ReadByte()
	if err != nil {
		return 0, 0, nil, nil, err
	}
	comp, err = ch.ReadByte()
	if err != nil {
		return 0, 0, nil, nil, err
	}
	payload = make([]byte, size)
	for i := range payload {
		payload[i], err = ch.ReadByte()
		if err != nil {
			return 0, 0, nil, nil, err
		}
	}
	ver = make([]byte, verificationLen(mode))
	for i := range ver {
		ver[i], err = ch.ReadByte()
		if err != nil {
			return 0, 0, nil, nil, err
		}
	}
	return seq, comp, payload, ver, nil
}

// payloadSize returns the packet payload length implied by a header byte.
func payloadSize(header byte) (int, error) {
	switch header {
	case SOH:
		return blockSize128, nil
	case STX:
		return blockSize1024, nil
	default:
		return 0, fmt.Errorf("xymodem: unknown packet header 0x%02x", header)
	}
}

// padded returns data right-padded with pad to exactly size bytes. If
// data is already size bytes or longer it is returned (truncated to
// size if longer, though callers never hand in more than size).
func padded(data []byte, size int, pad byte) []byte {
	if len(data) >= size {
		return data[:size]
	}
	out := make([]byte, size)
	n := copy(out, data)
	for i := n; i < size; i++ {
		out[i] = pad
	}
	return out
}
