// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/glowgrid/floorbus/pkg/floorwire"
	"github.com/spf13/cobra"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a valid bus frame",
	Long: `Wait for a valid floor bus frame on the connection until timeout.

Invalid bytes are ignored; the command succeeds on the first complete frame
that passes the checksum.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking bus wiring, baud rate and bridge connectivity.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Floorbus - Bus Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	frameChan := make(chan floorwire.Message, 1)
	errChan := make(chan error, 1)

	go func() {
		codec := floorwire.NewCodec(50 * time.Millisecond)
		buf := make([]byte, 128)
		invalidFrames := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				st := codec.Feed(buf[i])
				if !st.Terminal() {
					continue
				}
				if st == floorwire.StateReady {
					if m, ok := codec.Message(); ok {
						if invalidFrames > 0 {
							fmt.Printf("(skipped %d bad frames before sync)\n", invalidFrames)
						}
						m.Body = append([]byte(nil), m.Body...)
						frameChan <- m
						return
					}
				} else {
					invalidFrames++
				}
				codec.Reset()
			}
		}
	}()

	select {
	case m := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%02X)\n", floorwire.FormatMessageType(m.Type), m.Type)
		fmt.Printf("  From: 0x%02X\n", m.Src)
		fmt.Printf("  Dest: %s\n", m.Dest)
		fmt.Printf("  Body: %d bytes\n", len(m.Body))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
