// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/glowgrid/floorbus/pkg/floorwire"
	"github.com/spf13/cobra"
)

// captureRecord is one frame in a capture file, CBOR-encoded as a
// self-delimiting stream.
type captureRecord struct {
	Time   int64  `cbor:"t"` // unix nanoseconds
	DestLo byte   `cbor:"dl"`
	DestHi byte   `cbor:"dh"`
	Src    byte   `cbor:"s"`
	Type   byte   `cbor:"y"`
	Body   []byte `cbor:"b,omitempty"`
}

func (r captureRecord) message() floorwire.Message {
	return floorwire.Message{
		Dest: floorwire.Range{Lo: r.DestLo, Hi: r.DestHi},
		Src:  r.Src,
		Type: r.Type,
		Body: r.Body,
	}
}

var recordDuration int

var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Capture bus frames to a file",
	Long: `Decode bus frames and append them to a CBOR capture file.

Recording runs until Ctrl+C or --duration elapses. Frames that fail the
checksum are counted but not captured. Captures are replayed with the
replay command.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().IntVar(&recordDuration, "duration", 0, "Stop after N seconds (0 runs until Ctrl+C)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("create capture file: %w", err)
	}
	defer f.Close()

	fmt.Printf("Floorbus - Frame Capture\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Capture: %s\n", args[0])
	fmt.Printf("Press Ctrl+C to stop\n\n")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var deadline <-chan time.Time
	if recordDuration > 0 {
		deadline = time.After(time.Duration(recordDuration) * time.Second)
	}

	type result struct {
		captured int
		errors   int
	}
	done := make(chan result, 1)
	readErr := make(chan error, 1)

	go func() {
		enc := cbor.NewEncoder(f)
		codec := floorwire.NewCodec(50 * time.Millisecond)
		buf := make([]byte, 128)
		var res result
		for {
			n, err := conn.Read(buf)
			if err != nil {
				done <- res
				readErr <- err
				return
			}
			for i := 0; i < n; i++ {
				st := codec.Feed(buf[i])
				if !st.Terminal() {
					continue
				}
				if st == floorwire.StateReady {
					if m, ok := codec.Message(); ok {
						rec := captureRecord{
							Time:   time.Now().UnixNano(),
							DestLo: m.Dest.Lo,
							DestHi: m.Dest.Hi,
							Src:    m.Src,
							Type:   m.Type,
							Body:   append([]byte(nil), m.Body...),
						}
						if err := enc.Encode(rec); err != nil {
							log.Printf("capture write: %v", err)
						} else {
							res.captured++
						}
					}
				} else {
					res.errors++
				}
				codec.Reset()
			}
		}
	}()

	select {
	case <-stop:
	case <-deadline:
	case err := <-readErr:
		if err != ErrConnectionClosed {
			log.Printf("Read error: %v", err)
		}
	}

	// Best effort: the reader may still be mid-Read; counters from a
	// clean connection close arrive on done.
	select {
	case res := <-done:
		fmt.Printf("\nCaptured %d frames (%d bad frames skipped)\n", res.captured, res.errors)
	default:
		fmt.Printf("\nCapture stopped\n")
	}
	return nil
}
