// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

// Package floorwire provides a reference Go implementation of the Glowgrid
// floor bus wire protocol.
//
// The floor bus is a half-duplex multidrop serial bus with one controller
// ("master") and a daisy chain of peripheral tile nodes. This package
// provides message framing and escaping, checksum validation, destination
// range matching, and human-readable formatting. Bus arbitration and
// addressing policy live in the node and master packages.
package floorwire

// Protocol framing bytes. Any of these appearing inside a frame is preceded
// by EscByte and taken literally by the decoder.
const (
	StartByte = '>'  // 0x3E, start of message
	EndByte   = '\n' // 0x0A, end of message
	EscByte   = '\\' // 0x5C, escape character
)

// Message size limits
const (
	MaxBodyLen = 10 // fixed body bound; exceeding it is a protocol error
	headerLen  = 4  // destLo, destHigh, src, type
)

// Special addresses
const (
	AddressMaster   = 0x00 // the controller; never matches a peripheral
	AddressMin      = 0x01 // first assignable node address
	AddressWildcard = '*'  // 0x2A, upper bound meaning "through end of chain"
)

// CRC-8/MAXIM configuration
const (
	crcPolynomial = 0x8C // reflected 0x31
	crcInitial    = 0x00
)

// Message types. Opaque to the frame codec; interpreted by the node
// dispatcher and the master driver.
const (
	MsgNull    = 0x00 // no-op, acked when singly addressed (liveness ping)
	MsgAck     = 0x01 // acknowledge
	MsgNack    = 0x02 // negative acknowledge
	MsgStream  = 0x03 // streaming-response mode toggle
	MsgBatch   = 0x04 // batch color update for a range
	MsgColor   = 0x05 // set color
	MsgFade    = 0x06 // set fade target
	MsgStatus  = 0x07 // get/report node status
	MsgReset   = 0x10 // reset node state
	MsgAddress = 0xF1 // daisy-chain address assignment
)

// Status reply flag bits
const (
	FlagFading       = 0x20
	FlagSensorDetect = 0x40
)

// State is the decode state of a Codec. A Message exists only in StateReady;
// every other state exposes at most an error describing why not.
type State int

const (
	StateIdle State = iota
	StateHeader
	StateActive
	StateReady
	StateIgnored    // malformed header, frame consumed silently
	StateAborted    // checksum mismatch or truncated frame
	StateOverflowed // body exceeded MaxBodyLen
	StateTimedOut   // receive bound elapsed mid-frame
)

// Terminal reports whether the state requires a reset (or a new start
// marker) before another message can be decoded.
func (s State) Terminal() bool {
	return s >= StateReady
}

// String returns the state name for diagnostics.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateHeader:
		return "HEADER"
	case StateActive:
		return "ACTIVE"
	case StateReady:
		return "READY"
	case StateIgnored:
		return "IGNORED"
	case StateAborted:
		return "ABORTED"
	case StateOverflowed:
		return "OVERFLOWED"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}
