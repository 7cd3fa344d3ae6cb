// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package armproto

import (
	"fmt"
	"time"
)

// Statistics tracks decoder throughput and framing errors
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	BytesReceived uint64
	FramesDecoded uint64
	NoiseBytes    uint64
	FooterErrors  uint64
	OutOfRange    uint64 // Frames carrying at least one angle above MaxAngle

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // footer errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update accounts for one decoded byte
func (s *Statistics) Update(r Result) {
	s.BytesReceived++

	switch r.Outcome {
	case OutcomeDiscarded:
		s.NoiseBytes++
	case OutcomeFooterMismatch:
		s.FooterErrors++
	case OutcomeFrame:
		s.FramesDecoded++
		if len(ValidateAngles(r.Angles)) > 0 {
			s.OutOfRange++
		}
	}
}

// CalculateRates recalculates frame and error rates
func (s *Statistics) CalculateRates() {
	now := time.Now()
	elapsed := now.Sub(s.StartTime).Seconds()

	if elapsed > 0 {
		s.FrameRate = float64(s.FramesDecoded) / elapsed
		s.ErrorRate = float64(s.FooterErrors) / elapsed
	}

	s.LastUpdateTime = now
}

// SuccessRate returns the share of started frames that decoded, in percent
func (s *Statistics) SuccessRate() float64 {
	started := s.FramesDecoded + s.FooterErrors
	if started == 0 {
		return 0
	}
	return float64(s.FramesDecoded) * 100.0 / float64(started)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()
	elapsed := time.Since(s.StartTime)

	result := "=== Statistics ===\n"
	result += fmt.Sprintf("Running time: %s\n", elapsed.Round(time.Second))
	result += fmt.Sprintf("Bytes received: %d\n", s.BytesReceived)
	result += fmt.Sprintf("Frames decoded: %d (%.1f%%)\n", s.FramesDecoded, s.SuccessRate())
	result += fmt.Sprintf("Footer errors: %d\n", s.FooterErrors)
	result += fmt.Sprintf("Noise bytes: %d\n", s.NoiseBytes)
	if s.OutOfRange > 0 {
		result += fmt.Sprintf("Out-of-range frames: %d (clamped)\n", s.OutOfRange)
	}
	result += fmt.Sprintf("Frame rate: %.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error rate: %.2f errors/sec\n", s.ErrorRate)
	return result
}
