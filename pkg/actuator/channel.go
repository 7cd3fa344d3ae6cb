// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package actuator maps joint angles to timer duty values and commits all
// channels to hardware as one update.
package actuator

import "github.com/Thermoquad/armlink/pkg/armproto"

// Channel is one actuator output. Channels share the joint numbering so a
// channel index is also the joint's payload position.
type Channel = armproto.Joint

const (
	Base     = armproto.JointBase
	Shoulder = armproto.JointShoulder
	Elbow    = armproto.JointElbow
	Claw     = armproto.JointClaw

	NumChannels = armproto.NumJoints
)

// Channels lists every channel in commit order
var Channels = armproto.Joints

// Hardware is the capability the committer drives. Stage loads a duty value
// into a channel's buffer register without touching the live waveform;
// CommitAll makes every staged channel adopt its buffered value at the same
// period boundary. Neither call blocks or reports completion.
type Hardware interface {
	Stage(ch Channel, value uint32)
	CommitAll()
}
