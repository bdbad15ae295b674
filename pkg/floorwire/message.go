// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floorwire

// Message is one decoded unit of bus communication. A Message value exists
// only for well-formed frames: the codec never surfaces a message whose
// checksum failed or whose body exceeded the bound.
type Message struct {
	Dest Range
	Src  byte
	Type byte
	Body []byte
}

// NewMessage builds a message for encoding. The body is used as-is; it must
// not exceed MaxBodyLen or the encoder will reject it.
func NewMessage(dest Range, src, msgType byte, body []byte) Message {
	return Message{Dest: dest, Src: src, Type: msgType, Body: body}
}

// Checksum computes the message checksum over destination, source, type and
// body in emission order.
func (m Message) Checksum() byte {
	crc := byte(crcInitial)
	crc = UpdateCRC(crc, m.Dest.Lo)
	crc = UpdateCRC(crc, m.Dest.Hi)
	crc = UpdateCRC(crc, m.Src)
	crc = UpdateCRC(crc, m.Type)
	for _, b := range m.Body {
		crc = UpdateCRC(crc, b)
	}
	return crc
}

// FromMaster reports whether the message originates from the controller.
func (m Message) FromMaster() bool {
	return m.Src == AddressMaster
}

// Equal reports whether two messages carry the same fields. An empty body
// and a nil body compare equal.
func (m Message) Equal(o Message) bool {
	if m.Dest != o.Dest || m.Src != o.Src || m.Type != o.Type {
		return false
	}
	if len(m.Body) != len(o.Body) {
		return false
	}
	for i := range m.Body {
		if m.Body[i] != o.Body[i] {
			return false
		}
	}
	return true
}
