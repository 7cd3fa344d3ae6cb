// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package armproto

import "fmt"

// JointAngles holds one commanded angle per joint, in degrees.
// The wire format allows 0-255; values above MaxAngle are clamped by the
// actuator, not rejected here.
type JointAngles struct {
	Base     uint8
	Shoulder uint8
	Elbow    uint8
	Claw     uint8
}

// DefaultAngles is the boot position: arm centered, claw open.
var DefaultAngles = JointAngles{Base: 90, Shoulder: 90, Elbow: 90, Claw: 0}

// AnglesFromPayload builds JointAngles from a payload in wire order
func AnglesFromPayload(p [PayloadSize]byte) JointAngles {
	return JointAngles{Base: p[0], Shoulder: p[1], Elbow: p[2], Claw: p[3]}
}

// Payload returns the angles in wire order
func (a JointAngles) Payload() [PayloadSize]byte {
	return [PayloadSize]byte{a.Base, a.Shoulder, a.Elbow, a.Claw}
}

// Get returns the angle of a single joint
func (a JointAngles) Get(j Joint) uint8 {
	switch j {
	case JointBase:
		return a.Base
	case JointShoulder:
		return a.Shoulder
	case JointElbow:
		return a.Elbow
	case JointClaw:
		return a.Claw
	}
	return 0
}

// With returns a copy of a with joint j set to angle
func (a JointAngles) With(j Joint, angle uint8) JointAngles {
	switch j {
	case JointBase:
		a.Base = angle
	case JointShoulder:
		a.Shoulder = angle
	case JointElbow:
		a.Elbow = angle
	case JointClaw:
		a.Claw = angle
	}
	return a
}

func (a JointAngles) String() string {
	return fmt.Sprintf("base=%d shoulder=%d elbow=%d claw=%d", a.Base, a.Shoulder, a.Elbow, a.Claw)
}
