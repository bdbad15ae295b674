// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

// Package floornode implements the peripheral side of the floor bus: frame
// reception, command dispatch, daisy-chain self-addressing, color fading
// and touch reporting. A Node is driven from a single control loop via
// Tick; none of its methods are safe for concurrent use.
package floornode

import (
	"time"

	"github.com/glowgrid/floorbus/pkg/floorwire"
)

// Node is one floor cell on the bus.
type Node struct {
	cfg       Config
	ident     *NodeIdentity
	transport floorwire.Transport
	codec     *floorwire.Codec
	topo      *Topology

	actuator Actuator
	sensor   TouchSensor
	persist  Persistence

	color     Color
	fade      fader
	streaming bool
	lastTouch bool
	lastErr   error

	now func() time.Time
}

// New assembles a node. actuator, sensor and persist may be nil for nodes
// without the corresponding hardware.
func New(cfg Config, transport floorwire.Transport, links DaisyLinks, actuator Actuator, sensor TouchSensor, persist Persistence) *Node {
	n := &Node{
		cfg:       cfg,
		ident:     &NodeIdentity{},
		transport: transport,
		codec:     floorwire.NewCodec(cfg.MessageTimeout),
		actuator:  actuator,
		sensor:    sensor,
		persist:   persist,
		now:       time.Now,
	}
	if cfg.LoadPersisted && persist != nil {
		if addr, ok := persist.LoadAddress(); ok && addr >= floorwire.AddressMin {
			n.ident.assign(addr)
		}
	}
	n.topo = NewTopology(links, n.ident, cfg.AddressTimeout, func(m floorwire.Message) error {
		return floorwire.Send(transport, m)
	})
	return n
}

// Address returns the node bus address, ok false while unconfigured.
func (n *Node) Address() (byte, bool) {
	if !n.ident.Assigned() {
		return 0, false
	}
	return n.ident.Address(), true
}

// Configured reports whether the daisy-chain protocol finished.
func (n *Node) Configured() bool {
	return n.topo.Configured()
}

// Color returns the node's current output color.
func (n *Node) Color() Color {
	return n.color
}

// Streaming reports whether unsolicited touch status reports are enabled.
func (n *Node) Streaming() bool {
	return n.streaming
}

// Err returns and clears the last non-fatal error the control loop hit.
func (n *Node) Err() error {
	err := n.lastErr
	n.lastErr = nil
	return err
}

// Tick runs one control-loop iteration: advance the addressing protocol,
// drain and decode received bytes, step any running fade and sample the
// touch sensor.
func (n *Node) Tick() {
	n.topo.Tick()

	for {
		b, ok := n.transport.ReceiveByte()
		if !ok {
			break
		}
		if st := n.codec.Feed(b); st.Terminal() {
			n.consumeFrame(st)
		}
	}
	if st := n.codec.Poll(); st.Terminal() {
		n.consumeFrame(st)
	}

	if n.fade.active {
		c, _ := n.fade.step(n.now())
		n.applyColor(c)
	}

	n.sampleTouch()
}

func (n *Node) consumeFrame(st floorwire.State) {
	if st == floorwire.StateReady {
		if m, ok := n.codec.Message(); ok {
			n.dispatch(m)
		}
	} else if err := n.codec.Err(); err != nil {
		n.lastErr = err
	}
	n.codec.Reset()
}

func (n *Node) setColor(c Color) {
	n.fade.cancel()
	n.applyColor(c)
}

func (n *Node) applyColor(c Color) {
	n.color = c
	if n.actuator != nil {
		n.actuator.SetColor(c.R, c.G, c.B)
	}
}

func (n *Node) startFade(target Color, d time.Duration) {
	if d <= 0 {
		n.setColor(target)
		return
	}
	n.fade.begin(n.color, target, n.now(), d)
}

func (n *Node) resetState() {
	n.fade.cancel()
	n.streaming = false
	n.applyColor(Color{})
	if n.sensor != nil {
		n.sensor.Calibrate()
	}
}

func (n *Node) sampleTouch() {
	if n.sensor == nil {
		return
	}
	touched := n.sensor.Touched()
	if touched == n.lastTouch {
		return
	}
	n.lastTouch = touched
	if n.streaming && n.ident.Assigned() {
		n.reply(floorwire.MsgStatus, n.statusBody())
	}
}
