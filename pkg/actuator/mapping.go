// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actuator

import (
	"golang.org/x/exp/constraints"

	"github.com/Thermoquad/armlink/pkg/armproto"
)

// FullScale is the angle that maps to MaxTicks
const FullScale = armproto.MaxAngle

// clamp limits v to [lo, hi]
func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PulseTicks returns the high time in timer ticks for an angle.
// Angles above FullScale are clamped. An inverted or empty range yields
// MinTicks for every angle.
func PulseTicks(angle uint8, cal Calibration) uint32 {
	if cal.MaxTicks <= cal.MinTicks {
		return cal.MinTicks
	}
	a := uint32(clamp(angle, armproto.MinAngle, FullScale))
	return cal.MinTicks + a*(cal.MaxTicks-cal.MinTicks)/FullScale
}

// MapAngleToDuty returns the compare register value for an angle.
// The timer counts down from periodTicks and the output goes low on the
// compare match, so the register holds periodTicks minus the high time.
// A pulse longer than the period saturates at 0 (output always high).
func MapAngleToDuty(angle uint8, cal Calibration, periodTicks uint32) uint32 {
	ticks := PulseTicks(angle, cal)
	if ticks > periodTicks {
		return 0
	}
	return periodTicks - ticks
}

// HighTicks inverts MapAngleToDuty for hardware with up-counting timers
func HighTicks(duty, periodTicks uint32) uint32 {
	if duty > periodTicks {
		return 0
	}
	return periodTicks - duty
}
