package xymodem

import "errors"

// ErrCanceled is returned when the peer sent two consecutive CAN bytes,
// or when this side detected a fatal protocol inconsistency (a sequence
// mismatch, an undecodable filename) and actively sent two CAN bytes of
// its own.
var ErrCanceled = errors.New("xymodem: transfer canceled")

// ErrExhaustedRetries is returned when an error budget's counter reached
// its configured cap with no further progress possible.
var ErrExhaustedRetries = errors.New("xymodem: retries exhausted")
