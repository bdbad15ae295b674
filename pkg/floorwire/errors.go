// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floorwire

import "errors"

// Protocol error taxonomy. All of these are locally recovered: the codec or
// dispatcher discards the offending frame and resets to idle. None are fatal.
var (
	// ErrChecksumMismatch indicates the trailing checksum did not match the
	// one recomputed over the decoded frame.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrOverflow indicates the body exceeded MaxBodyLen.
	ErrOverflow = errors.New("body overflow")
	// ErrTimeout indicates the receive bound elapsed before the frame
	// reached a terminal state.
	ErrTimeout = errors.New("message timeout")
	// ErrMalformedHeader indicates an invalid destination range (lower bound
	// above a non-wildcard upper bound).
	ErrMalformedHeader = errors.New("malformed header")
	// ErrTruncated indicates an end marker arrived before the frame could
	// carry a checksum.
	ErrTruncated = errors.New("truncated frame")
	// ErrBodyTooLarge is returned by the encoder for bodies over MaxBodyLen.
	ErrBodyTooLarge = errors.New("body too large")
	// ErrUnknownCommand is used by dispatchers for a valid frame whose type
	// is not recognized.
	ErrUnknownCommand = errors.New("unknown command")
)
