// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/glowgrid/floorbus/pkg/floorwire"
	"github.com/spf13/cobra"
)

var (
	replaySend  bool
	replaySpeed float64
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay a capture file",
	Long: `Print the frames of a CBOR capture file, or retransmit them onto the
bus with --send, preserving the recorded inter-frame timing.

Examples:
  floorbus replay floor.cap
  floorbus --port /dev/ttyUSB0 replay floor.cap --send --speed 2`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replaySend, "send", false, "Retransmit frames onto the bus")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Timing multiplier for --send (2 = twice as fast)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open capture file: %w", err)
	}
	defer f.Close()

	var conn Connection
	if replaySend {
		if replaySpeed <= 0 {
			return fmt.Errorf("--speed must be positive")
		}
		var err error
		conn, _, err = OpenConnection()
		if err != nil {
			return err
		}
		defer conn.Close()
	}

	dec := cbor.NewDecoder(f)
	var lastTime int64
	count := 0

	for {
		var rec captureRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("capture record %d: %w", count+1, err)
		}
		count++

		m := rec.message()
		if conn == nil {
			ts := time.Unix(0, rec.Time).Format("01/02/06 15:04:05.000")
			fmt.Printf("%s %s", ts, floorwire.FormatMessage(m))
			continue
		}

		if lastTime != 0 && rec.Time > lastTime {
			gap := time.Duration(float64(rec.Time-lastTime) / replaySpeed)
			time.Sleep(gap)
		}
		lastTime = rec.Time

		frame, err := floorwire.EncodeMessage(m)
		if err != nil {
			return fmt.Errorf("capture record %d: %w", count, err)
		}
		if _, err := conn.Write(frame); err != nil {
			return fmt.Errorf("send record %d: %w", count, err)
		}
	}

	if conn != nil {
		fmt.Printf("Replayed %d frames\n", count)
	}
	return nil
}
