package xymodem

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"testing"
)

// ioChannel adapts a buffered reader/writer pair into a Channel. It never
// produces ErrTimeout on its own; tests that need timeouts use
// scriptedChannel instead.
type ioChannel struct {
	r *bufio.Reader
	w io.Writer
}

func (c *ioChannel) Write(p []byte) error {
	_, err := c.w.Write(p)
	return err
}

func (c *ioChannel) ReadByte() (byte, error) {
	return c.r.ReadByte()
}

// newLoopback wires two Channels together over a pair of io.Pipes, one
// per direction, so each Write blocks until its peer's matching Read
// drains it — a faithful stand-in for a full-duplex serial line driven
// by two goroutines taking turns.
func newLoopback() (a, b *ioChannel, closeBoth func()) {
	ar, aw := io.Pipe()
	br, bw := io.Pipe()
	a = &ioChannel{r: bufio.NewReader(br), w: aw}
	b = &ioChannel{r: bufio.NewReader(ar), w: bw}
	closeBoth = func() {
		_ = ar.Close()
		_ = aw.Close()
		_ = br.Close()
		_ = bw.Close()
	}
	return a, b, closeBoth
}

func runPair(t *testing.T, sender, receiver func()) {
	t.Helper()
	done := make(chan struct{}, 2)
	go func() { defer func() { done <- struct{}{} }(); sender() }()
	go func() { defer func() { done <- struct{}{} }(); receiver() }()
	<-done
	<-done
}

func TestXModemRoundTripCRC(t *testing.T) {
	src := make([]byte, 250)
	for i := range src {
		src[i] = byte(i)
	}

	senderCh, receiverCh, closeBoth := newLoopback()
	defer closeBoth()

	var sendErr, recvErr error
	var sink bytes.Buffer

	runPair(t,
		func() {
			sendErr = XModemSend(context.Background(), senderCh, bytes.NewReader(src), &XModemConfig{BlockLength: 128})
		},
		func() {
			recvErr = XModemReceive(context.Background(), receiverCh, &sink, ChecksumCRC16, nil)
		},
	)

	if sendErr != nil {
		t.Fatalf("XModemSend: %v", sendErr)
	}
	if recvErr != nil {
		t.Fatalf("XModemReceive: %v", recvErr)
	}

	got := sink.Bytes()
	if len(got) < len(src) {
		t.Fatalf("delivered %d bytes, want at least %d", len(got), len(src))
	}
	if !bytes.Equal(got[:len(src)], src) {
		t.Fatalf("delivered payload mismatch")
	}
	// Final packet is padded to a 128-byte boundary with the pad byte.
	for _, b := range got[len(src):] {
		if b != defaultPadByte {
			t.Fatalf("expected pad byte 0x%02x in tail, got 0x%02x", defaultPadByte, b)
		}
	}
}

func TestYModemRoundTrip(t *testing.T) {
	src := make([]byte, 2000)
	for i := range src {
		src[i] = byte(i * 7)
	}

	senderCh, receiverCh, closeBoth := newLoopback()
	defer closeBoth()

	var sendErr, recvErr error
	var sink bytes.Buffer
	var gotName string
	var gotSize uint64

	runPair(t,
		func() {
			sendErr = YModemSend(context.Background(), senderCh, bytes.NewReader(src), "hello.txt", int64(len(src)), nil)
		},
		func() {
			gotName, gotSize, recvErr = YModemReceive(context.Background(), receiverCh, &sink, nil)
		},
	)

	if sendErr != nil {
		t.Fatalf("YModemSend: %v", sendErr)
	}
	if recvErr != nil {
		t.Fatalf("YModemReceive: %v", recvErr)
	}
	if gotName != "hello.txt" {
		t.Fatalf("filename = %q, want hello.txt", gotName)
	}
	if gotSize != uint64(len(src)) {
		t.Fatalf("size = %d, want %d", gotSize, len(src))
	}
	if !bytes.Equal(sink.Bytes(), src) {
		t.Fatalf("delivered payload mismatch: got %d bytes, want %d", sink.Len(), len(src))
	}
}

func TestYModemRoundTripEmptyFile(t *testing.T) {
	senderCh, receiverCh, closeBoth := newLoopback()
	defer closeBoth()

	var sendErr, recvErr error
	var sink bytes.Buffer
	var gotSize uint64

	runPair(t,
		func() {
			sendErr = YModemSend(context.Background(), senderCh, bytes.NewReader(nil), "empty.bin", 0, nil)
		},
		func() {
			_, gotSize, recvErr = YModemReceive(context.Background(), receiverCh, &sink, nil)
		},
	)

	if sendErr != nil {
		t.Fatalf("YModemSend: %v", sendErr)
	}
	if recvErr != nil {
		t.Fatalf("YModemReceive: %v", recvErr)
	}
	if gotSize != 0 {
		t.Fatalf("size = %d, want 0", gotSize)
	}
	if sink.Len() != 0 {
		t.Fatalf("delivered %d bytes for an empty file", sink.Len())
	}
}
