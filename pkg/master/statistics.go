// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package master

import (
	"errors"
	"fmt"
	"time"

	"github.com/glowgrid/floorbus/pkg/floorwire"
)

// Statistics tracks bus frame counters and error rates.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames    uint64
	ValidFrames    uint64
	ChecksumErrors uint64
	Overflows      uint64
	Timeouts       uint64
	FramingErrors  uint64
	Nacks          uint64
	TouchEvents    uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordFrame updates counters for one received frame or decode error.
func (s *Statistics) RecordFrame(m floorwire.Message, decodeErr error) {
	s.TotalFrames++

	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, floorwire.ErrChecksumMismatch):
			s.ChecksumErrors++
		case errors.Is(decodeErr, floorwire.ErrOverflow):
			s.Overflows++
		case errors.Is(decodeErr, floorwire.ErrTimeout):
			s.Timeouts++
		default:
			s.FramingErrors++
		}
		return
	}

	s.ValidFrames++
	switch m.Type {
	case floorwire.MsgNack:
		s.Nacks++
	case floorwire.MsgStatus:
		if len(m.Body) > 0 && m.Body[0]&floorwire.FlagSensorDetect != 0 {
			s.TouchEvents++
		}
	}
	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates frame and error rates.
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		errorCount := s.ChecksumErrors + s.Overflows + s.Timeouts + s.FramingErrors
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary.
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
	}
	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.Overflows > 0 {
		result += fmt.Sprintf("Overflows:       %8d (%.1f%%)\n", s.Overflows, percent(s.Overflows))
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d (%.1f%%)\n", s.Timeouts, percent(s.Timeouts))
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d (%.1f%%)\n", s.FramingErrors, percent(s.FramingErrors))
	}
	if s.Nacks > 0 {
		result += fmt.Sprintf("Nacks:           %8d\n", s.Nacks)
	}
	if s.TouchEvents > 0 {
		result += fmt.Sprintf("Touch Events:    %8d\n", s.TouchEvents)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters.
func (s *Statistics) Reset() {
	now := time.Now()
	*s = Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}
