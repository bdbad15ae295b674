// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project
//
// Floorbus - Glowgrid floor bus controller
//
// Controller and diagnostics CLI for chained Glowgrid floor nodes:
// addressing, color control, touch streaming, monitoring and capture.

package main

import (
	"os"

	"github.com/glowgrid/floorbus/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
