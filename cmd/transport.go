// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"errors"

	"github.com/glowgrid/floorbus/pkg/floornode"
	"github.com/glowgrid/floorbus/pkg/floorwire"
	"github.com/glowgrid/floorbus/pkg/master"
)

var errDriverDisabled = errors.New("transmit while bus driver disabled")

// busTransport adapts a Connection to floorwire.Transport. A reader
// goroutine pumps incoming bytes into a channel so ReceiveByte never
// blocks; outgoing bytes are buffered per frame and written in one call
// when the driver is released, which keeps each frame in a single burst
// on the wire.
type busTransport struct {
	conn    Connection
	rx      chan byte
	txBuf   []byte
	sending bool
	lastErr error
}

func newBusTransport(conn Connection) *busTransport {
	t := &busTransport{
		conn: conn,
		rx:   make(chan byte, 4096),
	}
	go t.readLoop()
	return t
}

func (t *busTransport) readLoop() {
	buf := make([]byte, 128)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			close(t.rx)
			return
		}
		for _, b := range buf[:n] {
			t.rx <- b
		}
	}
}

func (t *busTransport) SendByte(b byte) error {
	if !t.sending {
		return errDriverDisabled
	}
	t.txBuf = append(t.txBuf, b)
	return nil
}

func (t *busTransport) ReceiveByte() (byte, bool) {
	select {
	case b, ok := <-t.rx:
		if !ok {
			return 0, false
		}
		return b, true
	default:
		return 0, false
	}
}

func (t *busTransport) SetTransmitEnabled(on bool) {
	if on {
		t.sending = true
		t.txBuf = t.txBuf[:0]
		return
	}
	if t.sending && len(t.txBuf) > 0 {
		if _, err := t.conn.Write(t.txBuf); err != nil {
			t.lastErr = err
		}
	}
	t.sending = false
}

// Err returns and clears the last deferred write error.
func (t *busTransport) Err() error {
	err := t.lastErr
	t.lastErr = nil
	return err
}

// headSignal drives the chain-head enable line through the connection.
// Connections without hardware enable support (a WebSocket bridge drives
// the line on its own end) get a purely local signal.
type headSignal struct {
	he    HeadEnable
	state bool
}

func (h *headSignal) Read() bool { return h.state }

func (h *headSignal) Assert() {
	h.state = true
	if h.he != nil {
		h.he.SetHeadEnable(true)
	}
}

func (h *headSignal) Deassert() {
	h.state = false
	if h.he != nil {
		h.he.SetHeadEnable(false)
	}
}

// openMaster opens the configured connection and wraps it in a bus
// controller.
func openMaster() (*master.Master, Connection, string, error) {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return nil, nil, "", err
	}

	head := &headSignal{}
	if he, ok := conn.(HeadEnable); ok {
		head.he = he
	}

	m := master.New(master.DefaultConfig(), newBusTransport(conn), head)
	return m, conn, connInfo, nil
}

var _ floorwire.Transport = (*busTransport)(nil)
var _ floornode.DirectionalSignal = (*headSignal)(nil)
