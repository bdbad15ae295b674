// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floorwire

// Transport is the half-duplex bus collaborator. Implementations stay in
// receive mode except while transmit-enable is asserted around a send.
type Transport interface {
	// SendByte transmits one byte. Transmit-enable must be asserted.
	SendByte(b byte) error
	// ReceiveByte returns the next pending inbound byte, if any. It never
	// blocks; ok is false when no byte is available.
	ReceiveByte() (b byte, ok bool)
	// SetTransmitEnabled switches the transceiver direction. The line is a
	// single shared resource: exactly one send may hold it at a time.
	SetTransmitEnabled(on bool)
}
