// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

// Package touch turns raw capacitive sense readings into a debounced
// touched/untouched signal. Raw readings are noisy and drift with
// temperature and humidity, so they run through a scalar Kalman filter
// and are compared against a self-calibrating baseline.
package touch

import "time"

// Sampler produces one raw capacitance reading. Higher values mean more
// capacitive load on the electrode.
type Sampler interface {
	Sample() (float64, error)
}

// SamplerFunc adapts a plain function to the Sampler interface.
type SamplerFunc func() (float64, error)

func (f SamplerFunc) Sample() (float64, error) { return f() }

// Config tunes the filter and the baseline tracker.
type Config struct {
	// ProcessNoise and MeasurementNoise are the Kalman filter Q and R.
	// The defaults trust the model over the sensor, which suits the
	// slow signals a foot on a tile produces.
	ProcessNoise     float64
	MeasurementNoise float64

	// Threshold is the fraction above baseline that counts as a touch.
	Threshold float64

	// RecalInterval is how long the electrode must read untouched
	// before the baseline re-seeds from the filtered value.
	RecalInterval time.Duration

	// StuckWindow forces a recalibration after this much continuous
	// touch. A reading that never releases is drift, not a foot.
	StuckWindow time.Duration
}

// DefaultConfig returns the tuning used on the floor tiles.
func DefaultConfig() Config {
	return Config{
		ProcessNoise:     1,
		MeasurementNoise: 20,
		Threshold:        0.05,
		RecalInterval:    2 * time.Second,
		StuckWindow:      9 * time.Second,
	}
}

// kalman is a scalar Kalman filter.
type kalman struct {
	q, r float64
	p, x float64
	seen bool
}

func (f *kalman) update(z float64) float64 {
	if !f.seen {
		f.x = z
		f.seen = true
		return f.x
	}
	f.p += f.q
	k := f.p / (f.p + f.r)
	f.x += k * (z - f.x)
	f.p *= 1 - k
	return f.x
}

func (f *kalman) reset() {
	f.seen = false
	f.p = 0
	f.x = 0
}

// Sensor classifies filtered readings against a tracked baseline.
// Not safe for concurrent use.
type Sensor struct {
	cfg     Config
	sampler Sampler
	filter  kalman

	baseline   float64
	calibrated bool
	touched    bool
	stateSince time.Time

	lastErr error
	now     func() time.Time
}

// New creates a sensor over the given sampler.
func New(sampler Sampler, cfg Config) *Sensor {
	return &Sensor{
		cfg:     cfg,
		sampler: sampler,
		filter:  kalman{q: cfg.ProcessNoise, r: cfg.MeasurementNoise},
		now:     time.Now,
	}
}

// Touched samples the electrode once and reports whether it is pressed.
// A sampler error leaves the previous classification in place; the error
// is available from Err.
func (s *Sensor) Touched() bool {
	z, err := s.sampler.Sample()
	if err != nil {
		s.lastErr = err
		return s.touched
	}

	v := s.filter.update(z)
	now := s.now()

	if !s.calibrated {
		s.baseline = v
		s.calibrated = true
		s.touched = false
		s.stateSince = now
		return false
	}

	touched := v > s.baseline*(1+s.cfg.Threshold)
	if touched != s.touched {
		s.touched = touched
		s.stateSince = now
		return touched
	}

	elapsed := now.Sub(s.stateSince)
	if !touched && s.cfg.RecalInterval > 0 && elapsed >= s.cfg.RecalInterval {
		// Idle long enough; absorb drift into the baseline.
		s.baseline = v
		s.stateSince = now
	} else if touched && s.cfg.StuckWindow > 0 && elapsed >= s.cfg.StuckWindow {
		s.baseline = v
		s.touched = false
		s.stateSince = now
	}
	return s.touched
}

// Calibrate discards the baseline and the filter state. The next sample
// re-seeds both.
func (s *Sensor) Calibrate() {
	s.filter.reset()
	s.calibrated = false
	s.touched = false
}

// Baseline returns the current untouched reference level.
func (s *Sensor) Baseline() float64 { return s.baseline }

// Value returns the last filtered reading.
func (s *Sensor) Value() float64 { return s.filter.x }

// Err returns and clears the last sampler error.
func (s *Sensor) Err() error {
	err := s.lastErr
	s.lastErr = nil
	return err
}
