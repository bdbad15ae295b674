// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floorwire

import "fmt"

// Range is an inclusive destination address range. A single destination
// encodes Lo == Hi. Hi == AddressWildcard addresses every node from Lo
// through the end of the chain.
type Range struct {
	Lo byte
	Hi byte
}

// Single returns a range addressing exactly one node.
func Single(addr byte) Range {
	return Range{Lo: addr, Hi: addr}
}

// Span returns a range addressing the nodes lo through hi inclusive.
func Span(lo, hi byte) Range {
	return Range{Lo: lo, Hi: hi}
}

// Broadcast returns the range addressing every node on the bus.
func Broadcast() Range {
	return Range{Lo: AddressMin, Hi: AddressWildcard}
}

// NextAddress returns the address after addr in assignment order. The
// wildcard byte can never be a node address: a single destination ending
// in it would decode as an open-ended range, so assignment skips it.
func NextAddress(addr byte) byte {
	next := addr + 1
	if next == AddressWildcard {
		next++
	}
	return next
}

// ToMaster returns the destination used by node replies.
func ToMaster() Range {
	return Range{Lo: AddressMaster, Hi: AddressMaster}
}

// IsWildcard reports whether the upper bound is open-ended.
func (r Range) IsWildcard() bool {
	return r.Hi == AddressWildcard
}

// IsMaster reports whether the range addresses the controller. The master
// treats any message with destination 0 as its own regardless of source.
func (r Range) IsMaster() bool {
	return r.Lo == AddressMaster
}

// Valid reports whether the range is well formed. A non-wildcard range with
// Hi < Lo never matches anything and is rejected as a malformed header.
func (r Range) Valid() bool {
	return r.IsWildcard() || r.Hi >= r.Lo
}

// Matches reports whether a peripheral with the given assigned address is
// covered by the range. Address 0 is reserved for the controller and never
// matches a peripheral; an unassigned node (address 0) matches nothing.
func (r Range) Matches(addr byte) bool {
	if addr == AddressMaster || r.Lo == AddressMaster {
		return false
	}
	if !r.Valid() {
		return false
	}
	if addr < r.Lo {
		return false
	}
	return r.IsWildcard() || addr <= r.Hi
}

// String formats the range the way the bus documentation writes it.
func (r Range) String() string {
	switch {
	case r.IsMaster():
		return "master"
	case r.Lo == AddressMin && r.IsWildcard():
		return "*"
	case r.IsWildcard():
		return fmt.Sprintf("%d-*", r.Lo)
	case r.Lo == r.Hi:
		return fmt.Sprintf("%d", r.Lo)
	default:
		return fmt.Sprintf("%d-%d", r.Lo, r.Hi)
	}
}
