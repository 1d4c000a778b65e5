// Package xymodem implements the XMODEM and YMODEM file-transfer
// protocols over a byte-oriented, full-duplex channel such as a serial
// line.
//
// The package exposes four blocking operations: XModemSend, XModemReceive,
// YModemSend and YModemReceive. Each drives a small state machine that
// negotiates a checksum mode, exchanges numbered packets framed with a
// start-of-header byte and a verification code, retries transient
// failures within a configurable budget, and terminates on end-of-
// transmission or a peer-initiated cancel.
//
// Opening the underlying channel, arranging its read timeout, and
// disposing of the transferred bytes are the caller's responsibility;
// see the Channel interface and the transport/serial subpackage for a
// concrete adapter over a real serial port.
package xymodem
