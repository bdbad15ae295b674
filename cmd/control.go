// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glowgrid/floorbus/pkg/floornode"
	"github.com/glowgrid/floorbus/pkg/floorwire"
	"github.com/spf13/cobra"
)

var controlTimeout int

var colorCmd = &cobra.Command{
	Use:   "color <dest> <r> <g> <b>",
	Short: "Set node color",
	Long: `Set the RGB color of one node, a range of nodes, or the whole floor.

Destinations:
  5      a single node
  2-8    a contiguous range
  3-*    node 3 to the end of the chain
  *      every node

Examples:
  floorbus --port /dev/ttyUSB0 color 5 255 0 0
  floorbus --port /dev/ttyUSB0 color '*' 0 0 64`,
	Args: cobra.ExactArgs(4),
	RunE: runColor,
}

var fadeCmd = &cobra.Command{
	Use:   "fade <dest> <r> <g> <b> <units>",
	Short: "Fade node color over time",
	Long: `Fade nodes to a target RGB color. The duration is given in fade units
of 250ms each, 1-255.`,
	Args: cobra.ExactArgs(5),
	RunE: runFade,
}

var statusCmd = &cobra.Command{
	Use:   "status <addr>",
	Short: "Query one node's state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset [dest]",
	Short: "Reset nodes to their power-on state",
	Long:  `Reset color, fade and streaming state and recalibrate the touch sensor. Defaults to the whole floor.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReset,
}

var streamCmd = &cobra.Command{
	Use:   "stream <dest> on|off",
	Short: "Enable or disable unsolicited touch reports",
	Args:  cobra.ExactArgs(2),
	RunE:  runStream,
}

var pingCmd = &cobra.Command{
	Use:   "ping <addr>",
	Short: "Check that a node is alive",
	Args:  cobra.ExactArgs(1),
	RunE:  runPing,
}

var batchCmd = &cobra.Command{
	Use:   "batch <lo> <r,g,b> [r,g,b ...]",
	Short: "Set per-node colors in one frame",
	Long: `Assign one color per node to a contiguous run starting at address lo.
At most three colors fit in a single frame.

Example:
  floorbus --port /dev/ttyUSB0 batch 4 255,0,0 0,255,0 0,0,255`,
	Args: cobra.MinimumNArgs(2),
	RunE: runBatch,
}

func init() {
	for _, c := range []*cobra.Command{colorCmd, fadeCmd, statusCmd, resetCmd, streamCmd, pingCmd, batchCmd} {
		c.Flags().IntVar(&controlTimeout, "timeout", 5, "Command timeout in seconds")
		rootCmd.AddCommand(c)
	}
}

// parseDest parses a destination argument: "5", "2-8", "3-*" or "*".
func parseDest(s string) (floorwire.Range, error) {
	if s == "*" {
		return floorwire.Broadcast(), nil
	}

	lo, hi, found := strings.Cut(s, "-")
	parse := func(v string) (byte, error) {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("bad address %q: %v", v, err)
		}
		if byte(n) < floorwire.AddressMin {
			return 0, fmt.Errorf("address %s is reserved for the controller", v)
		}
		if byte(n) == floorwire.AddressWildcard {
			return 0, fmt.Errorf("address %s is reserved as the range wildcard", v)
		}
		return byte(n), nil
	}

	l, err := parse(lo)
	if err != nil {
		return floorwire.Range{}, err
	}
	if !found {
		return floorwire.Single(l), nil
	}
	if hi == "*" {
		return floorwire.Range{Lo: l, Hi: floorwire.AddressWildcard}, nil
	}
	h, err := parse(hi)
	if err != nil {
		return floorwire.Range{}, err
	}
	r := floorwire.Span(l, h)
	if !r.Valid() {
		return floorwire.Range{}, fmt.Errorf("inverted range %q", s)
	}
	return r, nil
}

func parseByte(s string) (byte, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("bad value %q: %v", s, err)
	}
	return byte(n), nil
}

func parseColor(rs, gs, bs string) (floornode.Color, error) {
	r, err := parseByte(rs)
	if err != nil {
		return floornode.Color{}, err
	}
	g, err := parseByte(gs)
	if err != nil {
		return floornode.Color{}, err
	}
	b, err := parseByte(bs)
	if err != nil {
		return floornode.Color{}, err
	}
	return floornode.Color{R: r, G: g, B: b}, nil
}

func controlContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(controlTimeout)*time.Second)
}

func runColor(cmd *cobra.Command, args []string) error {
	dest, err := parseDest(args[0])
	if err != nil {
		return err
	}
	c, err := parseColor(args[1], args[2], args[3])
	if err != nil {
		return err
	}

	m, conn, _, err := openMaster()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := controlContext()
	defer cancel()
	return m.SetColor(ctx, dest, c)
}

func runFade(cmd *cobra.Command, args []string) error {
	dest, err := parseDest(args[0])
	if err != nil {
		return err
	}
	c, err := parseColor(args[1], args[2], args[3])
	if err != nil {
		return err
	}
	units, err := parseByte(args[4])
	if err != nil {
		return err
	}
	if units == 0 {
		return fmt.Errorf("fade duration must be at least 1 unit")
	}

	m, conn, _, err := openMaster()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := controlContext()
	defer cancel()
	return m.SetFade(ctx, dest, c, units)
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, err := parseByte(args[0])
	if err != nil {
		return err
	}

	m, conn, _, err := openMaster()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := controlContext()
	defer cancel()
	st, err := m.Status(ctx, addr)
	if err != nil {
		return err
	}

	fmt.Printf("Node %d:\n", st.Addr)
	fmt.Printf("  Color:   %d,%d,%d\n", st.Color.R, st.Color.G, st.Color.B)
	fmt.Printf("  Fading:  %v\n", st.Fading)
	fmt.Printf("  Touched: %v\n", st.Touched)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	dest := floorwire.Broadcast()
	if len(args) == 1 {
		var err error
		dest, err = parseDest(args[0])
		if err != nil {
			return err
		}
	}

	m, conn, _, err := openMaster()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := controlContext()
	defer cancel()
	return m.Reset(ctx, dest)
}

func runStream(cmd *cobra.Command, args []string) error {
	dest, err := parseDest(args[0])
	if err != nil {
		return err
	}
	var on bool
	switch args[1] {
	case "on":
		on = true
	case "off":
	default:
		return fmt.Errorf("expected on or off, got %q", args[1])
	}

	m, conn, _, err := openMaster()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := controlContext()
	defer cancel()
	return m.Stream(ctx, dest, on)
}

func runPing(cmd *cobra.Command, args []string) error {
	addr, err := parseByte(args[0])
	if err != nil {
		return err
	}

	m, conn, _, err := openMaster()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := controlContext()
	defer cancel()
	start := time.Now()
	if err := m.Ping(ctx, addr); err != nil {
		return err
	}
	fmt.Printf("Node %d responded in %v\n", addr, time.Since(start).Round(time.Microsecond))
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	lo, err := parseByte(args[0])
	if err != nil {
		return err
	}

	var colors []floornode.Color
	for _, arg := range args[1:] {
		parts := strings.Split(arg, ",")
		if len(parts) != 3 {
			return fmt.Errorf("bad color %q: expected r,g,b", arg)
		}
		c, err := parseColor(parts[0], parts[1], parts[2])
		if err != nil {
			return err
		}
		colors = append(colors, c)
	}

	m, conn, _, err := openMaster()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := controlContext()
	defer cancel()
	return m.SetBatch(ctx, lo, colors)
}
