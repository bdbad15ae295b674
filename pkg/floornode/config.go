// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floornode

import "time"

// Config carries the tunable timing constants of a node. These are
// configuration, not protocol invariants; the defaults mirror the reference
// firmware sizing.
type Config struct {
	// MessageTimeout bounds how long a partially received frame may occupy
	// the codec before it is abandoned.
	MessageTimeout time.Duration
	// AddressTimeout bounds how long a claimed address may wait for the
	// controller's acknowledge before the claim is retried.
	AddressTimeout time.Duration
	// FadeUnit is the wall-clock duration of one fade duration unit.
	FadeUnit time.Duration
	// LoadPersisted makes the node boot from a persisted address when the
	// persistence collaborator has one, skipping the claim round.
	LoadPersisted bool
}

// DefaultConfig returns the reference timing constants.
func DefaultConfig() Config {
	return Config{
		MessageTimeout: 50 * time.Millisecond,
		AddressTimeout: 10 * time.Millisecond,
		FadeUnit:       250 * time.Millisecond,
	}
}
