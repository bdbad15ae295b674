// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glowgrid/floorbus/pkg/floorwire"
	"github.com/glowgrid/floorbus/pkg/master"
)

// Event log entry
type watchLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// nodeView is what the TUI knows about one node, built from observed
// traffic.
type nodeView struct {
	r, g, b  uint8
	touched  bool
	fading   bool
	lastSeen time.Time
}

// TUI model
type watchModel struct {
	conn     Connection
	connInfo string
	showAll  bool

	stats         *master.Statistics
	nodes         map[byte]*nodeView
	eventLog      []watchLogEntry
	maxLogEntries int

	input      textinput.Model
	inputFocus bool

	width    int
	height   int
	connLost bool
	quitting bool
}

type watchTickMsg time.Time

func initialWatchModel(conn Connection, connInfo string, showAll bool) watchModel {
	ti := textinput.New()
	ti.Placeholder = "color * 0 0 64"
	ti.Prompt = "> "
	ti.CharLimit = 64

	return watchModel{
		conn:          conn,
		connInfo:      connInfo,
		showAll:       showAll,
		stats:         master.NewStatistics(),
		nodes:         make(map[byte]*nodeView),
		eventLog:      make([]watchLogEntry, 0),
		maxLogEntries: 100,
		input:         ti,
		width:         80,
		height:        24,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		watchTickCmd(),
		tea.EnterAltScreen,
	)
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputFocus {
			switch msg.String() {
			case "esc":
				m.inputFocus = false
				m.input.Blur()
				return m, nil
			case "enter":
				line := strings.TrimSpace(m.input.Value())
				m.input.SetValue("")
				if line != "" {
					if err := m.sendCommand(line); err != nil {
						m.addLogEntry(fmt.Sprintf("COMMAND: %v", err), true)
					} else {
						m.addLogEntry(fmt.Sprintf("sent: %s", line), false)
					}
				}
				return m, nil
			case "ctrl+c":
				m.quitting = true
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "tab", ":":
			m.inputFocus = true
			return m, m.input.Focus()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watchTickMsg:
		m.stats.CalculateRates()
		return m, watchTickCmd()

	case watchConnLostMsg:
		m.connLost = true
		m.addLogEntry("connection lost", true)

	case watchBatchMsg:
		for _, f := range msg.frames {
			m.consumeFrame(f)
		}
	}

	return m, nil
}

func (m *watchModel) consumeFrame(f watchFrameMsg) {
	if f.decodeErr != nil {
		m.stats.RecordFrame(floorwire.Message{}, f.decodeErr)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", f.decodeErr), true)
		return
	}

	msg := f.msg
	m.stats.RecordFrame(msg, nil)

	switch msg.Type {
	case floorwire.MsgStatus:
		if msg.Dest.IsMaster() && len(msg.Body) == 4 {
			nv := m.node(msg.Src)
			wasTouched := nv.touched
			nv.fading = msg.Body[0]&floorwire.FlagFading != 0
			nv.touched = msg.Body[0]&floorwire.FlagSensorDetect != 0
			nv.r, nv.g, nv.b = msg.Body[1], msg.Body[2], msg.Body[3]
			nv.lastSeen = time.Now()
			if nv.touched != wasTouched {
				verb := "released"
				if nv.touched {
					verb = "touched"
				}
				m.addLogEntry(fmt.Sprintf("node %d %s", msg.Src, verb), false)
			}
		}

	case floorwire.MsgColor:
		// Controller traffic reveals node colors without a status query.
		if msg.Src == floorwire.AddressMaster && len(msg.Body) == 3 {
			for addr, nv := range m.nodes {
				if msg.Dest.Matches(addr) {
					nv.r, nv.g, nv.b = msg.Body[0], msg.Body[1], msg.Body[2]
					nv.fading = false
				}
			}
		}

	case floorwire.MsgAddress:
		if msg.Dest.IsMaster() && len(msg.Body) == 1 {
			m.node(msg.Src)
			m.addLogEntry(fmt.Sprintf("node %d joined the chain", msg.Src), false)
		}

	case floorwire.MsgNack:
		m.addLogEntry(fmt.Sprintf("node %d rejected a command", msg.Src), true)
	}

	if m.showAll {
		m.addLogEntry(fmt.Sprintf("%s from 0x%02X to %s",
			floorwire.FormatMessageType(msg.Type), msg.Src, msg.Dest), false)
	}
}

func (m *watchModel) node(addr byte) *nodeView {
	nv, ok := m.nodes[addr]
	if !ok {
		nv = &nodeView{}
		m.nodes[addr] = nv
	}
	return nv
}

func (m *watchModel) addLogEntry(message string, isError bool) {
	entry := watchLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// sendCommand parses a command-bar line and writes the frame directly.
// Replies show up through the normal receive path.
func (m *watchModel) sendCommand(line string) error {
	fields := strings.Fields(line)
	var msg floorwire.Message

	switch fields[0] {
	case "color":
		if len(fields) != 5 {
			return fmt.Errorf("usage: color <dest> <r> <g> <b>")
		}
		dest, err := parseDest(fields[1])
		if err != nil {
			return err
		}
		c, err := parseColor(fields[2], fields[3], fields[4])
		if err != nil {
			return err
		}
		msg = floorwire.NewMessage(dest, floorwire.AddressMaster, floorwire.MsgColor, []byte{c.R, c.G, c.B})

	case "fade":
		if len(fields) != 6 {
			return fmt.Errorf("usage: fade <dest> <r> <g> <b> <units>")
		}
		dest, err := parseDest(fields[1])
		if err != nil {
			return err
		}
		c, err := parseColor(fields[2], fields[3], fields[4])
		if err != nil {
			return err
		}
		units, err := parseByte(fields[5])
		if err != nil {
			return err
		}
		msg = floorwire.NewMessage(dest, floorwire.AddressMaster, floorwire.MsgFade, []byte{c.R, c.G, c.B, units})

	case "status":
		if len(fields) != 2 {
			return fmt.Errorf("usage: status <addr>")
		}
		addr, err := parseByte(fields[1])
		if err != nil {
			return err
		}
		msg = floorwire.NewMessage(floorwire.Single(addr), floorwire.AddressMaster, floorwire.MsgStatus, nil)

	case "stream":
		if len(fields) != 3 {
			return fmt.Errorf("usage: stream <dest> on|off")
		}
		dest, err := parseDest(fields[1])
		if err != nil {
			return err
		}
		var b byte
		switch fields[2] {
		case "on":
			b = 1
		case "off":
		default:
			return fmt.Errorf("expected on or off, got %q", fields[2])
		}
		msg = floorwire.NewMessage(dest, floorwire.AddressMaster, floorwire.MsgStream, []byte{b})

	case "reset":
		dest := floorwire.Broadcast()
		if len(fields) == 2 {
			var err error
			dest, err = parseDest(fields[1])
			if err != nil {
				return err
			}
		}
		msg = floorwire.NewMessage(dest, floorwire.AddressMaster, floorwire.MsgReset, nil)

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}

	frame, err := floorwire.EncodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = m.conn.Write(frame)
	return err
}

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("FLOORBUS - FLOOR WATCH"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Tab: command bar | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	if m.connLost {
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	}

	// Floor grid
	s.WriteString(labelStyle.Render("Floor:"))
	s.WriteString("\n")
	if len(m.nodes) == 0 {
		s.WriteString(headerStyle.Render("  (no nodes seen yet - run 'floorbus address' or wait for traffic)"))
		s.WriteString("\n\n")
	} else {
		addrs := make([]int, 0, len(m.nodes))
		for a := range m.nodes {
			addrs = append(addrs, int(a))
		}
		sort.Ints(addrs)

		perRow := (m.width - 4) / 7
		if perRow < 1 {
			perRow = 1
		}

		grid := strings.Builder{}
		for i, a := range addrs {
			nv := m.nodes[byte(a)]
			cell := fmt.Sprintf(" %3d ", a)
			if nv.touched {
				cell = fmt.Sprintf(" %3d*", a)
			}
			cellStyle := lipgloss.NewStyle().
				Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", nv.r, nv.g, nv.b))).
				Foreground(lipgloss.Color("15"))
			grid.WriteString(cellStyle.Render(cell))
			grid.WriteString(" ")
			if (i+1)%perRow == 0 {
				grid.WriteString("\n")
			}
		}
		s.WriteString(boxStyle.Render(grid.String()))
		s.WriteString("\n\n")
	}

	// Statistics
	m.stats.CalculateRates()
	var validPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
	}
	totalErrors := m.stats.ChecksumErrors + m.stats.Overflows + m.stats.Timeouts + m.stats.FramingErrors

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidFrames, validPercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", totalErrors)),
	))
	if m.stats.ChecksumErrors > 0 || m.stats.Timeouts > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Checksum:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			labelStyle.Render("Timeouts:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Timeouts)),
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		labelStyle.Render("Touches:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TouchEvents)),
		labelStyle.Render("Nacks:"), func() string {
			if m.stats.Nacks > 0 {
				return warningStyle.Render(fmt.Sprintf("%d", m.stats.Nacks))
			}
			return valueStyle.Render("0")
		}(),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))
	s.WriteString("\n")

	// Command bar
	if m.inputFocus {
		s.WriteString(m.input.View())
	} else {
		s.WriteString(headerStyle.Render("Tab to enter a command"))
	}

	return s.String()
}
