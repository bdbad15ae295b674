// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floorwire

import "time"

// Codec implements the frame decode state machine. One Codec exists per
// physical link; the same fixed storage is reused across messages for the
// lifetime of the connection, with no per-frame allocation.
type Codec struct {
	state   State
	err     error
	escaped bool

	// Decoded header, body and trailing checksum, unescaped.
	buf [headerLen + MaxBodyLen + 1]byte
	n   int

	msg Message

	timeout  time.Duration
	deadline time.Time
	now      func() time.Time
}

// NewCodec creates a codec with the given receive timeout. A zero timeout
// disables the timed-out transition.
func NewCodec(timeout time.Duration) *Codec {
	return &Codec{timeout: timeout, now: time.Now}
}

// State returns the current decode state.
func (c *Codec) State() State {
	return c.state
}

// Err describes why the codec is in a terminal non-ready state. It is nil
// in StateIdle, StateHeader, StateActive and StateReady.
func (c *Codec) Err() error {
	return c.err
}

// Message returns the decoded message while in StateReady. The body aliases
// the codec's internal buffer and is valid until the next Reset.
func (c *Codec) Message() (Message, bool) {
	if c.state != StateReady {
		return Message{}, false
	}
	return c.msg, true
}

// Reset clears the codec to idle. The dispatcher issues this after consuming
// a message or observing a terminal error.
func (c *Codec) Reset() {
	c.state = StateIdle
	c.err = nil
	c.escaped = false
	c.n = 0
	c.msg = Message{}
}

// Poll advances the timeout transition without new input, freeing the buffer
// for the next message when the receive bound has elapsed mid-frame.
func (c *Codec) Poll() State {
	c.pollTimeout()
	return c.state
}

// Feed consumes one byte of input and returns the resulting state. On
// reaching StateReady the decoded message is readable via Message until the
// next Reset.
func (c *Codec) Feed(b byte) State {
	c.pollTimeout()

	switch c.state {
	case StateHeader:
		c.feedHeader(b)
	case StateActive:
		c.feedActive(b)
	default:
		// Idle and every terminal state accept only a new start marker.
		if b == StartByte {
			c.begin()
		}
	}
	return c.state
}

func (c *Codec) pollTimeout() {
	if c.timeout <= 0 {
		return
	}
	if c.state != StateHeader && c.state != StateActive {
		return
	}
	if c.now().After(c.deadline) {
		c.state = StateTimedOut
		c.err = ErrTimeout
		c.escaped = false
	}
}

// begin starts collecting a fresh frame. The receive timer is armed here.
func (c *Codec) begin() {
	c.state = StateHeader
	c.err = nil
	c.escaped = false
	c.n = 0
	c.msg = Message{}
	if c.timeout > 0 {
		c.deadline = c.now().Add(c.timeout)
	}
}

func (c *Codec) feedHeader(b byte) {
	if !c.escaped {
		switch b {
		case EscByte:
			c.escaped = true
			return
		case StartByte:
			c.begin()
			return
		case EndByte:
			// Frame ended before the header completed.
			c.state = StateAborted
			c.err = ErrTruncated
			return
		}
	}
	c.escaped = false
	c.buf[c.n] = b
	c.n++
	if c.n < headerLen {
		return
	}

	dest := Range{Lo: c.buf[0], Hi: c.buf[1]}
	if !dest.Valid() {
		// Malformed range: consume the rest of the frame silently.
		c.state = StateIgnored
		c.err = ErrMalformedHeader
		return
	}
	c.state = StateActive
}

func (c *Codec) feedActive(b byte) {
	if c.escaped {
		c.escaped = false
		c.store(b)
		return
	}
	switch b {
	case EscByte:
		// Not stored; the next byte is taken literally.
		c.escaped = true
	case EndByte:
		c.finish()
	default:
		c.store(b)
	}
}

func (c *Codec) store(b byte) {
	if c.n >= len(c.buf) {
		c.state = StateOverflowed
		c.err = ErrOverflow
		return
	}
	c.buf[c.n] = b
	c.n++
}

// finish closes the body, peels the trailing checksum and verifies it.
func (c *Codec) finish() {
	if c.n < headerLen+1 {
		// No room for a checksum byte: the frame was cut short.
		c.state = StateAborted
		c.err = ErrTruncated
		return
	}
	got := c.buf[c.n-1]
	want := CalculateCRC(c.buf[:c.n-1])
	if got != want {
		c.state = StateAborted
		c.err = ErrChecksumMismatch
		return
	}

	c.msg = Message{
		Dest: Range{Lo: c.buf[0], Hi: c.buf[1]},
		Src:  c.buf[2],
		Type: c.buf[3],
		Body: c.buf[headerLen : c.n-1],
	}
	c.state = StateReady
}
