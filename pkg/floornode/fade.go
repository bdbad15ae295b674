// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floornode

import "time"

// Color is one RGB triple.
type Color struct {
	R, G, B uint8
}

// fader linearly interpolates the node color toward a target over a fixed
// duration. Step is driven from the node control loop with the loop's
// current time, so tests can inject a fake clock.
type fader struct {
	active   bool
	from     Color
	to       Color
	start    time.Time
	duration time.Duration
}

func (f *fader) begin(from, to Color, now time.Time, d time.Duration) {
	if d <= 0 {
		f.active = false
		return
	}
	f.active = true
	f.from = from
	f.to = to
	f.start = now
	f.duration = d
}

func (f *fader) cancel() {
	f.active = false
}

// step returns the color for the given instant and whether the fade is
// still running afterwards.
func (f *fader) step(now time.Time) (Color, bool) {
	if !f.active {
		return f.to, false
	}
	elapsed := now.Sub(f.start)
	if elapsed >= f.duration {
		f.active = false
		return f.to, false
	}
	return Color{
		R: lerp(f.from.R, f.to.R, elapsed, f.duration),
		G: lerp(f.from.G, f.to.G, elapsed, f.duration),
		B: lerp(f.from.B, f.to.B, elapsed, f.duration),
	}, true
}

func lerp(from, to uint8, elapsed, total time.Duration) uint8 {
	delta := int64(to) - int64(from)
	return uint8(int64(from) + delta*int64(elapsed)/int64(total))
}
