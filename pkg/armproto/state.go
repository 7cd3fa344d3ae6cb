// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package armproto

import "fmt"

// FrameState is the decoder's position within a frame
type FrameState int

const (
	StateIdle FrameState = iota
	StateCollecting
	StateAwaitFooter
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCollecting:
		return "COLLECTING"
	case StateAwaitFooter:
		return "AWAIT_FOOTER"
	default:
		return "UNKNOWN"
	}
}

// State is the complete decoder state. Count is the number of payload bytes
// already stored and is only meaningful while Phase is StateCollecting.
// Payload is only meaningful while Phase is not StateIdle.
type State struct {
	Phase   FrameState
	Count   int
	Payload [PayloadSize]byte
}

func (s State) String() string {
	if s.Phase == StateCollecting {
		return fmt.Sprintf("%s(%d)", s.Phase, s.Count)
	}
	return s.Phase.String()
}

// Step advances the state machine by one byte. It returns the next state and,
// when b completes a valid frame, the decoded angles with ok set.
//
// Sentinel values only matter in Idle (HEADER) and AwaitFooter (FOOTER).
// A HEADER byte inside the payload is data, and a bad footer drops the whole
// candidate frame without retrying a shifted window.
func Step(s State, b byte) (next State, angles JointAngles, ok bool) {
	switch s.Phase {
	case StateIdle:
		if b == HeaderByte {
			return State{Phase: StateCollecting}, JointAngles{}, false
		}
		return s, JointAngles{}, false

	case StateCollecting:
		if s.Count < 0 || s.Count >= PayloadSize {
			return State{}, JointAngles{}, false
		}
		next = s
		next.Payload[s.Count] = b
		next.Count = s.Count + 1
		if next.Count == PayloadSize {
			next.Phase = StateAwaitFooter
			next.Count = 0
		}
		return next, JointAngles{}, false

	case StateAwaitFooter:
		if b == FooterByte {
			return State{}, AnglesFromPayload(s.Payload), true
		}
		return State{}, JointAngles{}, false

	default:
		return State{}, JointAngles{}, false
	}
}
