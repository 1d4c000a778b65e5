package xymodem

// Control tokens exchanged as single bytes between sender and receiver.
const (
	SOH byte = 0x01 // start of 128-byte packet header
	STX byte = 0x02 // start of 1024-byte packet header
	EOT byte = 0x04 // end of transmission
	ACK byte = 0x06 // positive acknowledgement
	NAK byte = 0x15 // negative acknowledgement
	CAN byte = 0x18 // cancel; two in a row abort the session
	C   byte = 0x43 // 'C' — receiver's request for CRC-16 mode
)

// defaultPadByte fills the tail of a short final packet when a Config
// leaves PadByte at its zero value.
const defaultPadByte = 0x1A

// The protocol defines exactly two payload sizes; the header byte
// (SOH/STX) selects between them.
const (
	blockSize128  = 128
	blockSize1024 = 1024
)
