// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floornode

import (
	"time"

	"github.com/glowgrid/floorbus/pkg/floorwire"
)

// dispatch routes one decoded message. Addressing-protocol messages are
// serviced before the address match because an unconfigured node has no
// address to match against.
func (n *Node) dispatch(m floorwire.Message) {
	switch m.Type {
	case floorwire.MsgAddress:
		n.topo.HandleAddress(m)
		return
	case floorwire.MsgAck:
		if n.topo.HandleAck(m) && n.persist != nil {
			if err := n.persist.StoreAddress(n.ident.Address()); err != nil {
				n.lastErr = err
			}
		}
		return
	case floorwire.MsgNack:
		n.topo.HandleNack(m)
		return
	}

	if !n.ident.Assigned() {
		return
	}
	addr := n.ident.Address()
	if !m.Dest.Matches(addr) {
		return
	}
	// Only a node addressed individually replies; a range or broadcast
	// reply would collide on the shared bus.
	single := m.Dest.Lo == m.Dest.Hi

	switch m.Type {
	case floorwire.MsgNull:
		if single {
			n.reply(floorwire.MsgAck, nil)
		}

	case floorwire.MsgColor:
		if len(m.Body) != 3 {
			if single {
				n.reply(floorwire.MsgNack, nil)
			}
			return
		}
		n.setColor(Color{m.Body[0], m.Body[1], m.Body[2]})
		if single {
			n.reply(floorwire.MsgAck, nil)
		}

	case floorwire.MsgFade:
		if len(m.Body) != 4 {
			if single {
				n.reply(floorwire.MsgNack, nil)
			}
			return
		}
		target := Color{m.Body[0], m.Body[1], m.Body[2]}
		d := time.Duration(m.Body[3]) * n.cfg.FadeUnit
		n.startFade(target, d)
		if single {
			n.reply(floorwire.MsgAck, nil)
		}

	case floorwire.MsgStatus:
		if single {
			n.reply(floorwire.MsgStatus, n.statusBody())
		}

	case floorwire.MsgStream:
		if len(m.Body) != 1 {
			if single {
				n.reply(floorwire.MsgNack, nil)
			}
			return
		}
		n.streaming = m.Body[0] != 0
		if single {
			n.reply(floorwire.MsgAck, nil)
		}

	case floorwire.MsgBatch:
		// Each node in the range picks its own triple out of the body.
		off := int(addr-m.Dest.Lo) * 3
		if off+3 > len(m.Body) {
			return
		}
		n.setColor(Color{m.Body[off], m.Body[off+1], m.Body[off+2]})

	case floorwire.MsgReset:
		n.resetState()
		if single {
			n.reply(floorwire.MsgAck, nil)
		}

	default:
		if single {
			n.reply(floorwire.MsgNack, nil)
		}
	}
}

func (n *Node) reply(typ byte, body []byte) {
	m := floorwire.NewMessage(floorwire.ToMaster(), n.ident.Address(), typ, body)
	if err := floorwire.Send(n.transport, m); err != nil {
		n.lastErr = err
	}
}

func (n *Node) statusBody() []byte {
	var flags byte
	if n.fade.active {
		flags |= floorwire.FlagFading
	}
	if n.lastTouch {
		flags |= floorwire.FlagSensorDetect
	}
	return []byte{flags, n.color.R, n.color.G, n.color.B}
}
