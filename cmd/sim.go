// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/glowgrid/floorbus/pkg/floornode"
	"github.com/glowgrid/floorbus/pkg/floorwire"
	"github.com/glowgrid/floorbus/pkg/sim"
)

var simNodes int

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Exercise the protocol against an in-memory floor",
	Long: `Build a simulated chain of nodes, assign addresses, and run a short
command sequence against it. No connection flags are needed.

Useful for validating protocol changes and for demonstrations without
hardware.`,
	RunE: runSim,
}

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.Flags().IntVar(&simNodes, "nodes", 8, "Number of simulated nodes")
}

func runSim(cmd *cobra.Command, args []string) error {
	if simNodes < 1 || simNodes > 254 {
		return fmt.Errorf("--nodes must be between 1 and 254")
	}

	fmt.Printf("Floorbus - Simulated Floor (%d nodes)\n\n", simNodes)

	chain := sim.BuildChain(simNodes)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	addrs, err := chain.Master.AssignAddresses(ctx)
	if err != nil {
		return fmt.Errorf("addressing: %w", err)
	}
	fmt.Printf("Addressed %d nodes in %v: %v\n", len(addrs), time.Since(start).Round(time.Millisecond), addrs)

	// Walk a color down the chain.
	for _, a := range addrs {
		if err := chain.Master.SetColor(ctx, floorwire.Single(a), colorWheel(int(a))); err != nil {
			return fmt.Errorf("color node %d: %w", a, err)
		}
	}
	chain.Run(4)

	// Touch a node in the middle and collect the streamed report.
	if err := chain.Master.Stream(ctx, floorwire.Broadcast(), true); err != nil {
		return fmt.Errorf("stream enable: %w", err)
	}
	chain.Run(2)
	mid := len(chain.Nodes) / 2
	chain.Nodes[mid].Sensor.Press()
	chain.Run(80)
	chain.Master.Poll()
	for _, ev := range chain.Master.Events() {
		fmt.Printf("Touch event: node %d touched=%v\n", ev.Status.Addr, ev.Status.Touched)
	}

	fmt.Printf("\nFloor state:\n")
	for i, n := range chain.Nodes {
		fmt.Printf("  node %2d  color %3d,%3d,%3d\n", i+1, n.Actuator.R, n.Actuator.G, n.Actuator.B)
	}

	fmt.Print("\n", chain.Master.Statistics().String())
	return nil
}

// colorWheel spreads distinct hues over the chain.
func colorWheel(i int) floornode.Color {
	switch i % 3 {
	case 0:
		return floornode.Color{R: 200}
	case 1:
		return floornode.Color{G: 200}
	default:
		return floornode.Color{B: 200}
	}
}
