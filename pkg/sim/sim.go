// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

// Package sim provides an in-memory floor: a shared half-duplex bus, the
// enable wiring between adjacent nodes, and fake node hardware. It backs
// the simulator command and the end-to-end tests, exercising the same
// controller and node code that runs against real hardware.
package sim

import (
	"errors"

	"github.com/glowgrid/floorbus/pkg/floornode"
	"github.com/glowgrid/floorbus/pkg/floorwire"
	"github.com/glowgrid/floorbus/pkg/master"
	"github.com/glowgrid/floorbus/pkg/touch"
)

// ErrTransmitDisabled means an endpoint wrote to the bus without claiming
// it first.
var ErrTransmitDisabled = errors.New("transmit while driver disabled")

// Bus is a shared medium: every byte an endpoint transmits is delivered
// to every other endpoint.
type Bus struct {
	endpoints []*Endpoint
}

// NewBus creates an empty bus.
func NewBus() *Bus { return &Bus{} }

// Endpoint attaches a new device to the bus.
func (b *Bus) Endpoint() *Endpoint {
	e := &Endpoint{bus: b}
	b.endpoints = append(b.endpoints, e)
	return e
}

// Endpoint is one device's connection to the bus. It implements
// floorwire.Transport.
type Endpoint struct {
	bus     *Bus
	rx      []byte
	driving bool
}

var _ floorwire.Transport = (*Endpoint)(nil)

func (e *Endpoint) SendByte(c byte) error {
	if !e.driving {
		return ErrTransmitDisabled
	}
	for _, other := range e.bus.endpoints {
		if other != e {
			other.rx = append(other.rx, c)
		}
	}
	return nil
}

func (e *Endpoint) ReceiveByte() (byte, bool) {
	if len(e.rx) == 0 {
		return 0, false
	}
	c := e.rx[0]
	e.rx = e.rx[1:]
	return c, true
}

func (e *Endpoint) SetTransmitEnabled(on bool) { e.driving = on }

// Wire is one enable line between adjacent chain positions. The upstream
// side asserts it, the downstream side reads it; both ends share the same
// Wire value.
type Wire struct {
	high bool
}

func (w *Wire) Read() bool { return w.high }
func (w *Wire) Assert()    { w.high = true }
func (w *Wire) Deassert()  { w.high = false }

// Actuator records the color a node drives.
type Actuator struct {
	R, G, B uint8
	Writes  int
}

func (a *Actuator) SetColor(r, g, b uint8) {
	a.R, a.G, a.B = r, g, b
	a.Writes++
}

// Capacitance levels for the simulated electrode.
const (
	sensorBaseLevel  = 500
	sensorTouchLevel = 700
)

// Sensor simulates a capacitive electrode: a settable raw level fed
// through the production touch pipeline, so the filter and baseline
// tracking run in simulation exactly as on hardware.
type Sensor struct {
	level        float64
	inner        *touch.Sensor
	Calibrations int
}

func NewSensor() *Sensor {
	s := &Sensor{level: sensorBaseLevel}
	s.inner = touch.New(touch.SamplerFunc(func() (float64, error) {
		return s.level, nil
	}), touch.DefaultConfig())
	return s
}

// Press raises the electrode level; the classifier needs a handful of
// samples before it reports the touch.
func (s *Sensor) Press() { s.level = sensorTouchLevel }

// Release restores the idle electrode level.
func (s *Sensor) Release() { s.level = sensorBaseLevel }

func (s *Sensor) Touched() bool { return s.inner.Touched() }

func (s *Sensor) Calibrate() {
	s.Calibrations++
	s.inner.Calibrate()
}

// Store is in-memory address persistence.
type Store struct {
	Addr  byte
	Saved bool
}

func (s *Store) LoadAddress() (byte, bool) { return s.Addr, s.Saved }

func (s *Store) StoreAddress(a byte) error {
	s.Addr = a
	s.Saved = true
	return nil
}

// Node is one simulated floor cell with its fake hardware.
type Node struct {
	Node     *floornode.Node
	Actuator *Actuator
	Sensor   *Sensor
	Store    *Store

	// upstream and downstream are the node's chain wires, in physical
	// order. downstream is nil on the last node.
	upstream   *Wire
	downstream *Wire
}

// Chain is a full simulated floor: one controller and n nodes in
// physical chain order.
type Chain struct {
	Bus    *Bus
	Master *master.Master
	Head   *Wire
	Nodes  []*Node
}

// BuildChain wires up a controller and n nodes. The controller's idle
// hook ticks every node, so its blocking calls drive the whole floor.
func BuildChain(n int) *Chain {
	return BuildChainConfig(n, floornode.DefaultConfig(), master.DefaultConfig())
}

// BuildChainConfig is BuildChain with explicit node and controller
// configuration.
func BuildChainConfig(n int, nodeCfg floornode.Config, masterCfg master.Config) *Chain {
	stores := make([]*Store, n)
	for i := range stores {
		stores[i] = &Store{}
	}
	return BuildChainStores(n, nodeCfg, masterCfg, stores)
}

// BuildChainStores is BuildChainConfig with caller-supplied address
// stores, one per node, for floors that boot with existing EEPROM
// contents.
func BuildChainStores(n int, nodeCfg floornode.Config, masterCfg master.Config, stores []*Store) *Chain {
	c := &Chain{
		Bus:  NewBus(),
		Head: &Wire{},
	}

	upstream := c.Head
	for i := 0; i < n; i++ {
		// The last node's downstream wire is left unterminated.
		downstream := &Wire{}
		sn := &Node{
			Actuator:   &Actuator{},
			Sensor:     NewSensor(),
			Store:      stores[i],
			upstream:   upstream,
			downstream: downstream,
		}
		// Alternate which physical connector faces the controller, so
		// half the nodes resolve their link polarity in each direction.
		links := floornode.DaisyLinks{A: upstream, B: downstream}
		if i%2 == 1 {
			links.A, links.B = links.B, links.A
		}
		sn.Node = floornode.New(nodeCfg, c.Bus.Endpoint(), links, sn.Actuator, sn.Sensor, sn.Store)
		c.Nodes = append(c.Nodes, sn)
		upstream = downstream
	}

	c.Master = master.New(masterCfg, c.Bus.Endpoint(), c.Head)
	c.Master.OnIdle(func() { c.Tick() })
	return c
}

// Tick advances every node by one control-loop iteration.
func (c *Chain) Tick() {
	for _, n := range c.Nodes {
		n.Node.Tick()
	}
}

// Run ticks the floor a fixed number of times.
func (c *Chain) Run(ticks int) {
	for i := 0; i < ticks; i++ {
		c.Tick()
	}
}

// DownstreamAsserted reports whether node i has enabled its successor.
func (c *Chain) DownstreamAsserted(i int) bool {
	return c.Nodes[i].downstream.Read()
}
