// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floornode

// NodeIdentity holds a node's bus address. It is created at boot with the
// address unset and assigned exactly once, either by the daisy-chain
// protocol or from a persisted value.
type NodeIdentity struct {
	addr     byte
	assigned bool
}

// Address returns the assigned bus address, or 0 before assignment.
func (id *NodeIdentity) Address() byte {
	return id.addr
}

// Assigned reports whether the node has claimed an address.
func (id *NodeIdentity) Assigned() bool {
	return id.assigned
}

func (id *NodeIdentity) assign(addr byte) {
	id.addr = addr
	id.assigned = true
}

func (id *NodeIdentity) clear() {
	id.addr = 0
	id.assigned = false
}

// Persistence is the collaborator that stores one assigned address byte
// across power cycles (EEPROM on the reference hardware).
type Persistence interface {
	// LoadAddress returns the stored address, ok false when none is stored.
	LoadAddress() (addr byte, ok bool)
	// StoreAddress records the address.
	StoreAddress(addr byte) error
}

// Actuator is the RGB output collaborator; intensities are 0-255.
type Actuator interface {
	SetColor(r, g, b uint8)
}

// TouchSensor is the touch input collaborator.
type TouchSensor interface {
	// Touched returns the current filtered touch reading.
	Touched() bool
	// Calibrate triggers a baseline recalibration.
	Calibrate()
}
