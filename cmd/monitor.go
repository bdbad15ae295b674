// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/glowgrid/floorbus/pkg/floorwire"
	"github.com/glowgrid/floorbus/pkg/master"
	"github.com/spf13/cobra"
)

var monitorStatsInterval int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded bus frames in human-readable format",
	Long: `Continuously decode and display floor bus frames as they arrive.

Each frame is shown with timestamp, source, destination range, message type
and decoded body. Decode errors are reported inline. With --stats-interval,
a counter summary is printed periodically.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 0, "Print statistics every N seconds (0 disables)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Floorbus - Frame Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	codec := floorwire.NewCodec(50 * time.Millisecond)
	stats := master.NewStatistics()
	buf := make([]byte, 128)

	var lastStats time.Time
	statsEvery := time.Duration(monitorStatsInterval) * time.Second

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// A WebSocket read error means the connection is permanently
			// closed - exit gracefully
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			st := codec.Feed(buf[i])
			if !st.Terminal() {
				continue
			}
			if st == floorwire.StateReady {
				if m, ok := codec.Message(); ok {
					stats.RecordFrame(m, nil)
					fmt.Print(floorwire.FormatMessage(m))
				}
			} else {
				stats.RecordFrame(floorwire.Message{}, codec.Err())
				fmt.Printf("[ERROR] %v: %v\n", st, codec.Err())
			}
			codec.Reset()
		}

		if statsEvery > 0 && time.Since(lastStats) >= statsEvery {
			fmt.Print(stats.String())
			lastStats = time.Now()
		}
	}
}
