// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package armproto

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a decoded frame into a human-readable line
func FormatFrame(a JointAngles, ts time.Time) string {
	return fmt.Sprintf("[%s] FRAME %s\n", ts.Format("15:04:05.000"), FormatAngles(a))
}

// FormatAngles formats the four joint angles, marking values that will be clamped
func FormatAngles(a JointAngles) string {
	parts := make([]string, 0, NumJoints)
	for _, j := range Joints {
		v := a.Get(j)
		part := fmt.Sprintf("%s=%d", strings.ToLower(j.String()), v)
		if v > MaxAngle {
			part += "(!)"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

// FormatRawBytes formats bytes as a space separated hex dump
func FormatRawBytes(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
