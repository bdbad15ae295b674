// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

// Package master implements the controller side of the floor bus: chain
// address assignment, node commands with acknowledge tracking, and touch
// event collection. A Master owns its transport; its methods must not be
// called concurrently.
package master

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glowgrid/floorbus/pkg/floornode"
	"github.com/glowgrid/floorbus/pkg/floorwire"
)

// addressRoundRetries is how many silent addressing rounds end the
// chain walk.
const addressRoundRetries = 3

var (
	// ErrNoReply means the addressed node did not answer within the
	// acknowledge window.
	ErrNoReply = errors.New("no reply from node")

	// ErrNacked means the node rejected the command.
	ErrNacked = errors.New("node rejected command")
)

// Config tunes the controller timing.
type Config struct {
	// AckTimeout bounds the wait for a single node's reply.
	AckTimeout time.Duration

	// RoundTimeout bounds one addressing round; a round that elapses
	// without a claim means the chain is exhausted.
	RoundTimeout time.Duration

	// MessageTimeout is the receive-side inter-byte frame timeout.
	MessageTimeout time.Duration
}

// DefaultConfig returns the controller timing used on the floor.
func DefaultConfig() Config {
	return Config{
		AckTimeout:     10 * time.Millisecond,
		RoundTimeout:   50 * time.Millisecond,
		MessageTimeout: 50 * time.Millisecond,
	}
}

// NodeStatus is one node's reported state.
type NodeStatus struct {
	Addr    byte
	Fading  bool
	Touched bool
	Color   floornode.Color
}

// TouchEvent is an unsolicited status report from a streaming node.
type TouchEvent struct {
	Status NodeStatus
}

// Master drives the bus.
type Master struct {
	cfg       Config
	transport floorwire.Transport
	codec     *floorwire.Codec
	head      floornode.DirectionalSignal
	stats     *Statistics

	nodes  []byte
	events []TouchEvent

	now  func() time.Time
	idle func()
}

// New creates a controller. head is the enable line into the first node
// of the chain.
func New(cfg Config, transport floorwire.Transport, head floornode.DirectionalSignal) *Master {
	return &Master{
		cfg:       cfg,
		transport: transport,
		codec:     floorwire.NewCodec(cfg.MessageTimeout),
		head:      head,
		stats:     NewStatistics(),
		now:       time.Now,
		idle:      func() { time.Sleep(100 * time.Microsecond) },
	}
}

// Statistics returns the controller's frame counters.
func (m *Master) Statistics() *Statistics { return m.stats }

// OnIdle replaces the wait executed between receive polls. Simulated
// setups use it to advance the far end of the bus instead of sleeping.
func (m *Master) OnIdle(f func()) { m.idle = f }

// Nodes returns the addresses assigned by the last AssignAddresses run.
func (m *Master) Nodes() []byte {
	return append([]byte(nil), m.nodes...)
}

// AssignAddresses runs the daisy-chain protocol: enable the first node,
// then repeat addressing rounds until one times out, which marks the end
// of the chain. The head enable stays asserted afterwards so the chain
// keeps its configuration.
func (m *Master) AssignAddresses(ctx context.Context) ([]byte, error) {
	m.head.Assert()
	m.nodes = nil

	last := byte(0)
	for {
		// A node that was enabled mid-round sees the broadcast too late,
		// so a silent round is retried before the chain counts as
		// exhausted.
		var claim floorwire.Message
		var err error
		for attempt := 0; attempt < addressRoundRetries; attempt++ {
			round := floorwire.NewMessage(floorwire.Broadcast(), floorwire.AddressMaster, floorwire.MsgAddress, []byte{last})
			if err = floorwire.Send(m.transport, round); err != nil {
				return m.nodes, fmt.Errorf("addressing round: %w", err)
			}
			claim, err = m.awaitReply(ctx, m.cfg.RoundTimeout, func(r floorwire.Message) bool {
				return r.Type == floorwire.MsgAddress && r.Dest.IsMaster()
			})
			if !errors.Is(err, ErrNoReply) {
				break
			}
		}
		if errors.Is(err, ErrNoReply) {
			// Chain exhausted.
			return m.nodes, nil
		}
		if err != nil {
			return m.nodes, err
		}
		if len(claim.Body) != 1 || claim.Body[0] != claim.Src || claim.Src < floorwire.AddressMin {
			return m.nodes, fmt.Errorf("malformed claim from node 0x%02X: %v", claim.Src, claim.Body)
		}
		if claim.Src <= last || claim.Src == floorwire.AddressWildcard {
			// A stale persisted address would duplicate an earlier
			// assignment or collide with the range wildcard. Refuse it;
			// the node drops the stored address and claims fresh on the
			// next round.
			refuse := floorwire.NewMessage(floorwire.Single(claim.Src), floorwire.AddressMaster, floorwire.MsgNack, nil)
			if err := floorwire.Send(m.transport, refuse); err != nil {
				return m.nodes, fmt.Errorf("refuse claim 0x%02X: %w", claim.Src, err)
			}
			continue
		}

		ack := floorwire.NewMessage(floorwire.Single(claim.Src), floorwire.AddressMaster, floorwire.MsgAck, nil)
		if err := floorwire.Send(m.transport, ack); err != nil {
			return m.nodes, fmt.Errorf("ack claim 0x%02X: %w", claim.Src, err)
		}
		m.nodes = append(m.nodes, claim.Src)
		last = claim.Src
	}
}

// SetColor sets the color of every node dest matches. A singly addressed
// command waits for the node's acknowledge.
func (m *Master) SetColor(ctx context.Context, dest floorwire.Range, c floornode.Color) error {
	return m.command(ctx, dest, floorwire.MsgColor, []byte{c.R, c.G, c.B})
}

// SetFade starts a fade to c over units fade periods on every node dest
// matches.
func (m *Master) SetFade(ctx context.Context, dest floorwire.Range, c floornode.Color, units byte) error {
	return m.command(ctx, dest, floorwire.MsgFade, []byte{c.R, c.G, c.B, units})
}

// SetBatch assigns one color per node to a contiguous run starting at lo.
// Node lo+i takes colors[i].
func (m *Master) SetBatch(ctx context.Context, lo byte, colors []floornode.Color) error {
	if len(colors) == 0 {
		return nil
	}
	if len(colors)*3 > floorwire.MaxBodyLen {
		return fmt.Errorf("batch of %d colors: %w", len(colors), floorwire.ErrBodyTooLarge)
	}
	hi := lo + byte(len(colors)) - 1
	if lo < floorwire.AddressMin || hi < lo ||
		lo == floorwire.AddressWildcard || hi == floorwire.AddressWildcard {
		return fmt.Errorf("batch span %d-%d is not addressable", lo, hi)
	}
	body := make([]byte, 0, len(colors)*3)
	for _, c := range colors {
		body = append(body, c.R, c.G, c.B)
	}
	return m.command(ctx, floorwire.Span(lo, hi), floorwire.MsgBatch, body)
}

// Stream enables or disables unsolicited touch reports on every node dest
// matches.
func (m *Master) Stream(ctx context.Context, dest floorwire.Range, on bool) error {
	var b byte
	if on {
		b = 1
	}
	return m.command(ctx, dest, floorwire.MsgStream, []byte{b})
}

// Reset returns every node dest matches to its power-on state.
func (m *Master) Reset(ctx context.Context, dest floorwire.Range) error {
	return m.command(ctx, dest, floorwire.MsgReset, nil)
}

// Ping checks that the node at addr is alive.
func (m *Master) Ping(ctx context.Context, addr byte) error {
	return m.command(ctx, floorwire.Single(addr), floorwire.MsgNull, nil)
}

// Status queries one node's state.
func (m *Master) Status(ctx context.Context, addr byte) (NodeStatus, error) {
	req := floorwire.NewMessage(floorwire.Single(addr), floorwire.AddressMaster, floorwire.MsgStatus, nil)
	if err := floorwire.Send(m.transport, req); err != nil {
		return NodeStatus{}, fmt.Errorf("status 0x%02X: %w", addr, err)
	}
	reply, err := m.awaitReply(ctx, m.cfg.AckTimeout, func(r floorwire.Message) bool {
		return r.Type == floorwire.MsgStatus && r.Src == addr
	})
	if err != nil {
		return NodeStatus{}, fmt.Errorf("status 0x%02X: %w", addr, err)
	}
	st, err := parseStatus(reply)
	if err != nil {
		return NodeStatus{}, fmt.Errorf("status 0x%02X: %w", addr, err)
	}
	return st, nil
}

// Events returns and clears the touch events collected while waiting for
// replies or polling.
func (m *Master) Events() []TouchEvent {
	ev := m.events
	m.events = nil
	return ev
}

// Poll drains pending bus traffic without blocking, collecting unsolicited
// status reports. Call it regularly while nodes are streaming.
func (m *Master) Poll() {
	for {
		b, ok := m.transport.ReceiveByte()
		if !ok {
			break
		}
		if st := m.codec.Feed(b); st.Terminal() {
			m.consumeFrame(st)
		}
	}
	if st := m.codec.Poll(); st.Terminal() {
		m.consumeFrame(st)
	}
}

// command sends one command frame. Singly addressed commands wait for the
// node's acknowledge; range commands return as soon as the frame is sent,
// because multiple repliers would collide on the bus.
func (m *Master) command(ctx context.Context, dest floorwire.Range, typ byte, body []byte) error {
	if dest.Lo == floorwire.AddressWildcard && dest.Hi == floorwire.AddressWildcard {
		// Single(AddressWildcard) decodes on the wire as an open-ended
		// range, so every node from the wildcard value up would reply.
		return fmt.Errorf("address %d is the range wildcard", dest.Lo)
	}
	msg := floorwire.NewMessage(dest, floorwire.AddressMaster, typ, body)
	if err := floorwire.Send(m.transport, msg); err != nil {
		return fmt.Errorf("send 0x%02X to %s: %w", typ, dest, err)
	}
	if dest.Lo != dest.Hi {
		return nil
	}

	reply, err := m.awaitReply(ctx, m.cfg.AckTimeout, func(r floorwire.Message) bool {
		return r.Src == dest.Lo && (r.Type == floorwire.MsgAck || r.Type == floorwire.MsgNack)
	})
	if err != nil {
		return fmt.Errorf("command 0x%02X to node 0x%02X: %w", typ, dest.Lo, err)
	}
	if reply.Type == floorwire.MsgNack {
		return fmt.Errorf("command 0x%02X to node 0x%02X: %w", typ, dest.Lo, ErrNacked)
	}
	return nil
}

// awaitReply waits for a frame matching pred, routing any other valid
// traffic through the unsolicited path. ErrNoReply on timeout.
func (m *Master) awaitReply(ctx context.Context, timeout time.Duration, pred func(floorwire.Message) bool) (floorwire.Message, error) {
	deadline := m.now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return floorwire.Message{}, err
		}

		b, ok := m.transport.ReceiveByte()
		if !ok {
			if st := m.codec.Poll(); st.Terminal() {
				m.consumeFrame(st)
			}
			if m.now().After(deadline) {
				return floorwire.Message{}, ErrNoReply
			}
			m.idle()
			continue
		}

		st := m.codec.Feed(b)
		if !st.Terminal() {
			continue
		}
		if st != floorwire.StateReady {
			m.consumeFrame(st)
			continue
		}
		msg, _ := m.codec.Message()
		msg.Body = append([]byte(nil), msg.Body...)
		m.stats.RecordFrame(msg, nil)
		m.codec.Reset()
		if pred(msg) {
			return msg, nil
		}
		m.unsolicited(msg)
	}
}

func (m *Master) consumeFrame(st floorwire.State) {
	if st == floorwire.StateReady {
		if msg, ok := m.codec.Message(); ok {
			msg.Body = append([]byte(nil), msg.Body...)
			m.stats.RecordFrame(msg, nil)
			m.unsolicited(msg)
		}
	} else {
		m.stats.RecordFrame(floorwire.Message{}, m.codec.Err())
	}
	m.codec.Reset()
}

func (m *Master) unsolicited(msg floorwire.Message) {
	if msg.Type != floorwire.MsgStatus || !msg.Dest.IsMaster() {
		return
	}
	st, err := parseStatus(msg)
	if err != nil {
		return
	}
	m.events = append(m.events, TouchEvent{Status: st})
}

func parseStatus(m floorwire.Message) (NodeStatus, error) {
	if len(m.Body) != 4 {
		return NodeStatus{}, fmt.Errorf("status body %d bytes: %w", len(m.Body), floorwire.ErrTruncated)
	}
	return NodeStatus{
		Addr:    m.Src,
		Fading:  m.Body[0]&floorwire.FlagFading != 0,
		Touched: m.Body[0]&floorwire.FlagSensorDetect != 0,
		Color:   floornode.Color{R: m.Body[1], G: m.Body[2], B: m.Body[3]},
	}, nil
}
