// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floorwire

import (
	"fmt"
	"strings"
)

// FormatMessageType returns the human-readable name for a message type.
func FormatMessageType(msgType byte) string {
	switch msgType {
	case MsgNull:
		return "NULL"
	case MsgAck:
		return "ACK"
	case MsgNack:
		return "NACK"
	case MsgStream:
		return "STREAM"
	case MsgBatch:
		return "BATCH"
	case MsgColor:
		return "COLOR"
	case MsgFade:
		return "FADE"
	case MsgStatus:
		return "STATUS"
	case MsgReset:
		return "RESET"
	case MsgAddress:
		return "ADDRESS"
	default:
		return "UNKNOWN"
	}
}

// FormatMessage formats a decoded message into a one-or-two line
// human-readable string for the monitor output.
func FormatMessage(m Message) string {
	src := "master"
	if m.Src != AddressMaster {
		src = fmt.Sprintf("node %d", m.Src)
	}
	result := fmt.Sprintf("%s (0x%02X) to=%s from=%s len=%d\n",
		FormatMessageType(m.Type), m.Type, m.Dest, src, len(m.Body))

	if detail := formatBody(m.Type, m.Body); detail != "" {
		result += detail
	}
	return result
}

func formatBody(msgType byte, body []byte) string {
	switch msgType {
	case MsgColor:
		if len(body) == 3 {
			return fmt.Sprintf("  RGB: (%d, %d, %d)\n", body[0], body[1], body[2])
		}

	case MsgFade:
		if len(body) == 4 {
			return fmt.Sprintf("  RGB: (%d, %d, %d), Duration: %d units\n",
				body[0], body[1], body[2], body[3])
		}

	case MsgStatus:
		if len(body) >= 1 {
			flags := []string{}
			if body[0]&FlagFading != 0 {
				flags = append(flags, "FADING")
			}
			if body[0]&FlagSensorDetect != 0 {
				flags = append(flags, "TOUCH")
			}
			flagStr := "-"
			if len(flags) > 0 {
				flagStr = strings.Join(flags, "|")
			}
			if len(body) >= 4 {
				return fmt.Sprintf("  Flags: %s, RGB: (%d, %d, %d)\n",
					flagStr, body[1], body[2], body[3])
			}
			return fmt.Sprintf("  Flags: %s\n", flagStr)
		}
		return "  (status request)\n"

	case MsgStream:
		if len(body) == 1 {
			mode := "off"
			if body[0] != 0 {
				mode = "on"
			}
			return fmt.Sprintf("  Streaming: %s\n", mode)
		}

	case MsgAddress:
		if len(body) == 1 {
			return fmt.Sprintf("  Address: %d\n", body[0])
		}

	case MsgBatch:
		if len(body) >= 3 && len(body)%3 == 0 {
			groups := make([]string, 0, len(body)/3)
			for i := 0; i+2 < len(body); i += 3 {
				groups = append(groups, fmt.Sprintf("(%d,%d,%d)", body[i], body[i+1], body[i+2]))
			}
			return "  RGB groups: " + strings.Join(groups, " ") + "\n"
		}

	case MsgNull, MsgAck, MsgNack, MsgReset:
		if len(body) == 0 {
			return ""
		}
	}

	if len(body) == 0 {
		return ""
	}
	// Default: hex dump
	result := "  Body:"
	for _, b := range body {
		result += fmt.Sprintf(" %02X", b)
	}
	return result + "\n"
}
