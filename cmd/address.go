// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var addressTimeout int

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Assign chain addresses to all nodes",
	Long: `Run the daisy-chain addressing protocol.

The controller asserts the chain-head enable line (DTR on serial
connections) and broadcasts addressing rounds. Nodes claim sequential
addresses in physical chain order; each claim is acknowledged and the node
enables its downstream neighbor. A silent round marks the end of the chain.

Exit codes:
  0 - At least one node addressed
  1 - No nodes responded
  2 - Connection error`,
	RunE: runAddress,
}

func init() {
	rootCmd.AddCommand(addressCmd)
	addressCmd.Flags().IntVar(&addressTimeout, "timeout", 10, "Overall timeout in seconds")
}

func runAddress(cmd *cobra.Command, args []string) error {
	m, conn, connInfo, err := openMaster()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Floorbus - Chain Addressing\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(addressTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	addrs, err := m.AssignAddresses(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Addressing failed: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("--- Addressing summary ---\n")
	fmt.Printf("Nodes found: %d (%.1fs)\n", len(addrs), time.Since(start).Seconds())
	for i, a := range addrs {
		fmt.Printf("  position %d -> address %d\n", i+1, a)
	}

	if len(addrs) == 0 {
		fmt.Printf("No nodes responded. Check chain wiring and the head enable line.\n")
		os.Exit(1)
	}
	return nil
}
