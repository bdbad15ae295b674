// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floornode

// DirectionalSignal is one physical daisy-chain link. The node drives it
// toward its neighbor with Assert/Deassert and samples the neighbor's side
// with Read.
type DirectionalSignal interface {
	Read() bool
	Assert()
	Deassert()
}

// DaisyLinks are the two chain links of a node. Which one faces the
// controller is not fixed by wiring convention: polarity is resolved at
// runtime by whichever side is asserted first, then fixed for the node's
// lifetime.
type DaisyLinks struct {
	A DirectionalSignal
	B DirectionalSignal
}
