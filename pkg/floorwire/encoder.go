// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floorwire

import "fmt"

// EncodeMessage renders a message to wire format: start marker, escaped
// header and body, escaped checksum, end marker. Escaping is bit-exact with
// the decoder: exactly the bytes the decoder treats specially are escaped.
func EncodeMessage(m Message) ([]byte, error) {
	if len(m.Body) > MaxBodyLen {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrBodyTooLarge, len(m.Body), MaxBodyLen)
	}
	if !m.Dest.Valid() {
		return nil, fmt.Errorf("%w: dest %d-%d", ErrMalformedHeader, m.Dest.Lo, m.Dest.Hi)
	}

	// Worst case every payload byte escapes, plus framing.
	frame := make([]byte, 0, 2*(headerLen+len(m.Body)+1)+2)
	frame = append(frame, StartByte)
	frame = escapeAppend(frame, m.Dest.Lo)
	frame = escapeAppend(frame, m.Dest.Hi)
	frame = escapeAppend(frame, m.Src)
	frame = escapeAppend(frame, m.Type)
	for _, b := range m.Body {
		frame = escapeAppend(frame, b)
	}
	frame = escapeAppend(frame, m.Checksum())
	frame = append(frame, EndByte)
	return frame, nil
}

// escapeAppend appends b, preceded by the escape character when b collides
// with a reserved byte.
func escapeAppend(dst []byte, b byte) []byte {
	if b == StartByte || b == EndByte || b == EscByte {
		dst = append(dst, EscByte)
	}
	return append(dst, b)
}

// Send encodes the message and transmits it, asserting transmit-enable for
// exactly the duration of the frame. The single-threaded node model is what
// guards the transmit-enable line: no other send may run concurrently.
func Send(t Transport, m Message) error {
	frame, err := EncodeMessage(m)
	if err != nil {
		return err
	}
	t.SetTransmitEnabled(true)
	defer t.SetTransmitEnabled(false)
	for _, b := range frame {
		if err := t.SendByte(b); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
	}
	return nil
}
