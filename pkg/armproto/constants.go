// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package armproto

// Framing Constants
const (
	HeaderByte = 0xFF
	FooterByte = 0xFE

	PayloadSize = 4
	FrameSize   = 1 + PayloadSize + 1
)

// Angle Limits
const (
	MinAngle = 0
	MaxAngle = 180
)

// Joint identifies one actuated joint. The numeric value is the joint's
// position in the frame payload.
type Joint int

const (
	JointBase Joint = iota
	JointShoulder
	JointElbow
	JointClaw

	NumJoints = 4
)

// Joints lists every joint in payload order
var Joints = [NumJoints]Joint{JointBase, JointShoulder, JointElbow, JointClaw}

func (j Joint) String() string {
	switch j {
	case JointBase:
		return "BASE"
	case JointShoulder:
		return "SHOULDER"
	case JointElbow:
		return "ELBOW"
	case JointClaw:
		return "CLAW"
	default:
		return "UNKNOWN"
	}
}
