// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floornode

import (
	"time"

	"github.com/glowgrid/floorbus/pkg/floorwire"
)

// TopologyState is the daisy-chain protocol state of a node.
type TopologyState int

const (
	TopoUnconfigured TopologyState = iota
	TopoAwaitingEnable
	TopoClaiming
	TopoEnablingDownstream
	TopoConfigured
)

// String returns the state name for diagnostics.
func (s TopologyState) String() string {
	switch s {
	case TopoUnconfigured:
		return "UNCONFIGURED"
	case TopoAwaitingEnable:
		return "AWAITING_ENABLE"
	case TopoClaiming:
		return "CLAIMING"
	case TopoEnablingDownstream:
		return "ENABLING_DOWNSTREAM"
	case TopoConfigured:
		return "CONFIGURED"
	default:
		return "UNKNOWN"
	}
}

// Topology runs the daisy-chain self-addressing protocol for one node.
// Addresses are assigned in strict physical chain order: a node claims only
// while its upstream link is asserted, and it asserts its downstream link
// only after the controller acknowledged the claim, so no two nodes can ever
// be claiming concurrently.
type Topology struct {
	state      TopologyState
	links      DaisyLinks
	upstream   DirectionalSignal
	downstream DirectionalSignal

	ident *NodeIdentity
	send  func(floorwire.Message) error

	claimed   byte
	claimedAt time.Time
	ackBound  time.Duration
	awaitAck  bool

	now func() time.Time
}

// NewTopology creates the protocol state machine. send emits a message on
// the bus; ackBound is the claim acknowledge wait bound.
func NewTopology(links DaisyLinks, ident *NodeIdentity, ackBound time.Duration, send func(floorwire.Message) error) *Topology {
	return &Topology{
		state:    TopoUnconfigured,
		links:    links,
		ident:    ident,
		ackBound: ackBound,
		send:     send,
		now:      time.Now,
	}
}

// State returns the current protocol state.
func (t *Topology) State() TopologyState {
	return t.state
}

// Configured reports whether the node finished the protocol.
func (t *Topology) Configured() bool {
	return t.state == TopoConfigured
}

// Tick advances the state machine by one control-loop iteration. It never
// blocks: a node whose upstream link is never asserted simply stays in
// AwaitingEnable, which signals "last node / unused slot", not an error.
func (t *Topology) Tick() {
	if t.state == TopoUnconfigured {
		t.state = TopoAwaitingEnable
	}

	switch t.state {
	case TopoAwaitingEnable:
		// Resolve link polarity: whichever side is asserted first faces
		// the controller. The transition completes within one tick so a
		// round already queued behind the enable edge is not missed.
		switch {
		case t.links.A.Read():
			t.upstream, t.downstream = t.links.A, t.links.B
		case t.links.B.Read():
			t.upstream, t.downstream = t.links.B, t.links.A
		default:
			return
		}
		t.state = TopoClaiming

	case TopoClaiming:
		if t.awaitAck && t.ackBound > 0 && t.now().Sub(t.claimedAt) > t.ackBound {
			// Controller never acked; allow the next round to re-claim.
			t.awaitAck = false
		}

	case TopoEnablingDownstream:
		t.downstream.Assert()
		t.state = TopoConfigured
	}
}

// HandleAddress services one controller addressing round. The body carries
// the last assigned address; the node claims the next one and reports it.
func (t *Topology) HandleAddress(m floorwire.Message) {
	if t.state != TopoClaiming || t.awaitAck {
		return
	}
	if !m.FromMaster() || len(m.Body) != 1 {
		return
	}
	if !t.upstream.Read() {
		// Enable dropped; the claim window is closed.
		return
	}

	next := floorwire.NextAddress(m.Body[0])
	if t.ident.Assigned() {
		// Re-announce the persisted address instead of taking a new one.
		next = t.ident.Address()
	}
	t.claimed = next
	t.claimedAt = t.now()
	t.awaitAck = true

	reply := floorwire.NewMessage(floorwire.ToMaster(), next, floorwire.MsgAddress, []byte{next})
	if err := t.send(reply); err != nil {
		t.awaitAck = false
	}
}

// HandleAck completes a pending claim when the controller confirms it.
// Returns true when the ack finished this node's configuration.
func (t *Topology) HandleAck(m floorwire.Message) bool {
	if t.state != TopoClaiming || !t.awaitAck {
		return false
	}
	if !m.FromMaster() || !m.Dest.Matches(t.claimed) {
		return false
	}

	if !t.ident.Assigned() {
		t.ident.assign(t.claimed)
	}
	t.awaitAck = false
	t.state = TopoEnablingDownstream
	return true
}

// HandleNack services a controller refusal of a pending claim. A refused
// persisted address is stale; the node forgets it and claims a fresh one
// on the next round. Returns true when the nack ended a pending claim.
func (t *Topology) HandleNack(m floorwire.Message) bool {
	if t.state != TopoClaiming || !t.awaitAck {
		return false
	}
	if !m.FromMaster() || !m.Dest.Matches(t.claimed) {
		return false
	}
	t.ident.clear()
	t.awaitAck = false
	return true
}

// PendingClaim returns the address awaiting controller confirmation, ok
// false when no claim is outstanding.
func (t *Topology) PendingClaim() (byte, bool) {
	if !t.awaitAck {
		return 0, false
	}
	return t.claimed, true
}
