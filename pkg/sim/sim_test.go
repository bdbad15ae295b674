// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/glowgrid/floorbus/pkg/floornode"
	"github.com/glowgrid/floorbus/pkg/floorwire"
	"github.com/glowgrid/floorbus/pkg/master"
)

func buildTestChain(t *testing.T, n int) *Chain {
	t.Helper()
	masterCfg := master.Config{
		AckTimeout:     5 * time.Millisecond,
		RoundTimeout:   5 * time.Millisecond,
		MessageTimeout: 50 * time.Millisecond,
	}
	c := BuildChainConfig(n, floornode.DefaultConfig(), masterCfg)

	addrs, err := c.Master.AssignAddresses(context.Background())
	require.NoError(t, err)
	require.Len(t, addrs, n)
	return c
}

func TestChain_AssignsAddressesInPhysicalOrder(t *testing.T) {
	const n = 6
	c := buildTestChain(t, n)

	for i, sn := range c.Nodes {
		addr, ok := sn.Node.Address()
		require.True(t, ok, "node %d unconfigured", i)
		require.Equal(t, byte(i+1), addr, "node %d", i)
		require.True(t, sn.Node.Configured(), "node %d", i)
		require.True(t, c.DownstreamAsserted(i), "node %d downstream", i)
		require.True(t, sn.Store.Saved, "node %d persistence", i)
		require.Equal(t, byte(i+1), sn.Store.Addr, "node %d persisted addr", i)
	}
}

func TestChain_SingleNode(t *testing.T) {
	c := buildTestChain(t, 1)
	addr, ok := c.Nodes[0].Node.Address()
	require.True(t, ok)
	require.Equal(t, byte(1), addr)
}

func TestChain_AddressingSkipsWildcardByte(t *testing.T) {
	// A chain long enough to reach the wildcard byte value. Assigning it
	// would make a single destination decode as an open-ended range.
	const n = 44
	c := buildTestChain(t, n)

	prev := byte(0)
	for i, a := range c.Master.Nodes() {
		require.Greater(t, a, prev, "position %d", i)
		require.NotEqual(t, byte(floorwire.AddressWildcard), a, "position %d", i)
		prev = a
	}
	addr, ok := c.Nodes[41].Node.Address()
	require.True(t, ok)
	require.Equal(t, byte(floorwire.AddressWildcard+1), addr)

	// The node just past the gap is still individually addressable.
	require.NoError(t, c.Master.SetColor(context.Background(), floorwire.Single(addr), floornode.Color{R: 200}))
	c.Run(4)
	for i, sn := range c.Nodes {
		if i == 41 {
			require.Equal(t, uint8(200), sn.Actuator.R, "node %d", i)
		} else {
			require.Zero(t, sn.Actuator.R, "node %d", i)
		}
	}
}

func TestChain_StalePersistedAddressesReassigned(t *testing.T) {
	// Two nodes boot with EEPROM contents from an earlier chain layout.
	// The controller keeps the first, which fits the chain order, and
	// reassigns the second, which would duplicate an address.
	masterCfg := master.Config{
		AckTimeout:     5 * time.Millisecond,
		RoundTimeout:   5 * time.Millisecond,
		MessageTimeout: 50 * time.Millisecond,
	}
	nodeCfg := floornode.DefaultConfig()
	nodeCfg.LoadPersisted = true
	stores := []*Store{
		{Addr: 5, Saved: true},
		{Addr: 2, Saved: true},
		{}, {}, {},
	}
	c := BuildChainStores(5, nodeCfg, masterCfg, stores)

	addrs, err := c.Master.AssignAddresses(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte{5, 6, 7, 8, 9}, addrs)

	seen := map[byte]bool{}
	for i, sn := range c.Nodes {
		addr, ok := sn.Node.Address()
		require.True(t, ok, "node %d unconfigured", i)
		require.False(t, seen[addr], "address %d claimed twice", addr)
		seen[addr] = true
	}
	require.Equal(t, byte(6), stores[1].Addr, "reassigned address not persisted")
}

func TestChain_SetColorReachesOnlyMatchingNodes(t *testing.T) {
	c := buildTestChain(t, 5)
	ctx := context.Background()

	require.NoError(t, c.Master.SetColor(ctx, floorwire.Single(3), floornode.Color{R: 250, G: 0, B: 0}))
	c.Run(4)

	for i, sn := range c.Nodes {
		if i == 2 {
			require.Equal(t, uint8(250), sn.Actuator.R, "node %d", i)
		} else {
			require.Zero(t, sn.Actuator.R, "node %d", i)
		}
	}
}

func TestChain_RangeAndBroadcast(t *testing.T) {
	c := buildTestChain(t, 5)
	ctx := context.Background()

	require.NoError(t, c.Master.SetColor(ctx, floorwire.Span(2, 4), floornode.Color{G: 99}))
	c.Run(4)
	for i, sn := range c.Nodes {
		if i >= 1 && i <= 3 {
			require.Equal(t, uint8(99), sn.Actuator.G, "node %d", i)
		} else {
			require.Zero(t, sn.Actuator.G, "node %d", i)
		}
	}

	require.NoError(t, c.Master.SetColor(ctx, floorwire.Broadcast(), floornode.Color{B: 7}))
	c.Run(4)
	for i, sn := range c.Nodes {
		require.Equal(t, uint8(7), sn.Actuator.B, "node %d", i)
	}
}

func TestChain_BatchAssignsPerNodeColors(t *testing.T) {
	c := buildTestChain(t, 3)

	colors := []floornode.Color{{R: 1}, {R: 2}, {R: 3}}
	require.NoError(t, c.Master.SetBatch(context.Background(), 1, colors))
	c.Run(4)

	for i, sn := range c.Nodes {
		require.Equal(t, uint8(i+1), sn.Actuator.R, "node %d", i)
	}
}

func TestChain_StatusRoundTrip(t *testing.T) {
	c := buildTestChain(t, 2)
	ctx := context.Background()

	require.NoError(t, c.Master.SetColor(ctx, floorwire.Single(2), floornode.Color{R: 5, G: 6, B: 7}))
	st, err := c.Master.Status(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, master.NodeStatus{Addr: 2, Color: floornode.Color{R: 5, G: 6, B: 7}}, st)
}

func TestChain_PingUnknownAddressTimesOut(t *testing.T) {
	c := buildTestChain(t, 2)
	err := c.Master.Ping(context.Background(), 9)
	require.ErrorIs(t, err, master.ErrNoReply)
}

func TestChain_TouchStreaming(t *testing.T) {
	c := buildTestChain(t, 3)
	ctx := context.Background()

	require.NoError(t, c.Master.Stream(ctx, floorwire.Broadcast(), true))
	c.Run(2)
	c.Master.Poll()
	c.Master.Events() // drop anything collected so far

	// The capacitive pipeline needs a run of samples before the touch
	// crosses the classifier threshold.
	c.Nodes[1].Sensor.Press()
	c.Run(80)
	c.Master.Poll()

	events := c.Master.Events()
	require.Len(t, events, 1)
	require.Equal(t, byte(2), events[0].Status.Addr)
	require.True(t, events[0].Status.Touched)

	c.Nodes[1].Sensor.Release()
	c.Run(80)
	c.Master.Poll()
	events = c.Master.Events()
	require.Len(t, events, 1)
	require.False(t, events[0].Status.Touched)
}

func TestChain_ResetRecalibratesSensors(t *testing.T) {
	c := buildTestChain(t, 3)
	ctx := context.Background()

	require.NoError(t, c.Master.SetColor(ctx, floorwire.Broadcast(), floornode.Color{R: 9}))
	c.Run(4)
	require.NoError(t, c.Master.Reset(ctx, floorwire.Broadcast()))
	c.Run(4)

	for i, sn := range c.Nodes {
		require.Zero(t, sn.Actuator.R, "node %d", i)
		require.Equal(t, 1, sn.Sensor.Calibrations, "node %d", i)
	}
}

func TestEndpoint_RequiresDriverEnable(t *testing.T) {
	bus := NewBus()
	e := bus.Endpoint()
	require.ErrorIs(t, e.SendByte('x'), ErrTransmitDisabled)

	e.SetTransmitEnabled(true)
	require.NoError(t, e.SendByte('x'))
}

func TestBus_DeliversToAllOtherEndpoints(t *testing.T) {
	bus := NewBus()
	a, b, c := bus.Endpoint(), bus.Endpoint(), bus.Endpoint()

	a.SetTransmitEnabled(true)
	require.NoError(t, a.SendByte(0x42))

	_, ok := a.ReceiveByte()
	require.False(t, ok, "sender echoed its own byte")
	vb, ok := b.ReceiveByte()
	require.True(t, ok)
	require.Equal(t, byte(0x42), vb)
	vc, ok := c.ReceiveByte()
	require.True(t, ok)
	require.Equal(t, byte(0x42), vc)
}
