package xymodem

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestXModemSendExhaustedOnAllNAK(t *testing.T) {
	ch := &constantChannel{b: NAK}
	src := bytes.NewReader(bytes.Repeat([]byte{'x'}, 300))

	cfg := &XModemConfig{MaxErrors: 5, MaxInitialErrors: 5, BlockLength: 128}
	err := XModemSend(context.Background(), ch, src, cfg)
	if !errors.Is(err, ErrExhaustedRetries) {
		t.Fatalf("XModemSend() error = %v, want ErrExhaustedRetries", err)
	}
}

func TestXModemReceiveProbeTimeout(t *testing.T) {
	ch := &scriptedChannel{} // every read times out
	var sink bytes.Buffer

	cfg := &XModemConfig{MaxInitialErrors: 4, MaxErrors: 4}
	err := XModemReceive(context.Background(), ch, &sink, ChecksumCRC16, cfg)
	if !errors.Is(err, ErrExhaustedRetries) {
		t.Fatalf("XModemReceive() error = %v, want ErrExhaustedRetries", err)
	}
	if sink.Len() != 0 {
		t.Fatalf("delivered %d bytes on a probe that never got a header", sink.Len())
	}
}

func TestXModemReceiveSequenceMismatchCancels(t *testing.T) {
	payload := make([]byte, 128)
	for i := range payload {
		payload[i] = byte(i)
	}
	// Sender sends sequence=2 while the receiver expects 1.
	pkt := buildPacket(SOH, 2, payload, ChecksumCRC16)

	ch := &scriptedChannel{replies: [][]byte{pkt}}
	var sink bytes.Buffer

	err := XModemReceive(context.Background(), ch, &sink, ChecksumCRC16, nil)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("XModemReceive() error = %v, want ErrCanceled", err)
	}

	if len(ch.writes) == 0 {
		t.Fatal("expected the receiver to write a cancel sequence")
	}
	last := ch.writes[len(ch.writes)-1]
	if len(last) != 2 || last[0] != CAN || last[1] != CAN {
		t.Fatalf("last write = %v, want two CAN bytes", last)
	}
}

func TestXModemReceiveNakThenRecover(t *testing.T) {
	good := make([]byte, 128)
	for i := range good {
		good[i] = byte(200 + i)
	}
	pkt := buildPacket(SOH, 1, good, ChecksumCRC16)
	corrupt := append([]byte(nil), pkt...)
	corrupt[len(corrupt)-1] ^= 0xFF // flip a CRC byte

	ch := &scriptedChannel{replies: [][]byte{corrupt, pkt, {EOT}}}
	var sink bytes.Buffer

	if err := XModemReceive(context.Background(), ch, &sink, ChecksumCRC16, nil); err != nil {
		t.Fatalf("XModemReceive: %v", err)
	}
	if !bytes.Equal(sink.Bytes(), good) {
		t.Fatalf("delivered payload mismatch after NAK-then-resend")
	}
}
