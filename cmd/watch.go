// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/glowgrid/floorbus/pkg/floorwire"
)

var watchShowAll bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Interactive TUI for the floor",
	Long: `Watch the floor in an interactive terminal UI.

Shows a live grid of node colors and touch states built from observed bus
traffic, frame statistics, and an event log. A command bar sends bus
commands without leaving the UI:

  color <dest> <r> <g> <b>
  fade <dest> <r> <g> <b> <units>
  status <addr>
  stream <dest> on|off
  reset [dest]

Tab focuses the command bar, Esc returns to the grid, q quits.

Supports both serial and WebSocket connections.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchShowAll, "show-all", false, "Log every frame, not only errors and touch events")
}

// watchFrameMsg carries one decode result to the TUI.
type watchFrameMsg struct {
	msg       floorwire.Message
	decodeErr error
}

// watchBatchMsg batches decode results to bound the TUI update rate.
type watchBatchMsg struct {
	frames []watchFrameMsg
}

type watchConnLostMsg struct{}

func runWatch(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	m := initialWatchModel(conn, connInfo, watchShowAll)
	p := tea.NewProgram(m, tea.WithAltScreen())

	done := make(chan struct{})
	defer close(done)

	// Reader goroutine: decode frames and hand them to a batcher.
	frames := make(chan watchFrameMsg, 256)
	go func() {
		codec := floorwire.NewCodec(50 * time.Millisecond)
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				select {
				case <-done:
				default:
					p.Send(watchConnLostMsg{})
				}
				return
			}
			for i := 0; i < n; i++ {
				st := codec.Feed(buf[i])
				if !st.Terminal() {
					continue
				}
				var out watchFrameMsg
				if st == floorwire.StateReady {
					if msg, ok := codec.Message(); ok {
						msg.Body = append([]byte(nil), msg.Body...)
						out = watchFrameMsg{msg: msg}
					}
				} else {
					out = watchFrameMsg{decodeErr: codec.Err()}
				}
				codec.Reset()
				select {
				case frames <- out:
				default:
					// Drop under TUI backpressure; counters resync from
					// later frames.
				}
			}
		}
	}()

	// Batch sender: flush decoded frames to the TUI at a fixed rate.
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				var batch watchBatchMsg
			drain:
				for {
					select {
					case f := <-frames:
						batch.frames = append(batch.frames, f)
					default:
						break drain
					}
				}
				if len(batch.frames) > 0 {
					p.Send(batch)
				}
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
