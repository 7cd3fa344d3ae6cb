// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package armproto

// Outcome classifies what a single byte did to the decoder
type Outcome int

const (
	// OutcomeNone means the byte advanced a frame in progress
	OutcomeNone Outcome = iota
	// OutcomeDiscarded means the byte arrived while idle and was not a header
	OutcomeDiscarded
	// OutcomeFrame means the byte completed a valid frame
	OutcomeFrame
	// OutcomeFooterMismatch means a full payload was dropped for a bad footer
	OutcomeFooterMismatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "NONE"
	case OutcomeDiscarded:
		return "DISCARDED"
	case OutcomeFrame:
		return "FRAME"
	case OutcomeFooterMismatch:
		return "FOOTER_MISMATCH"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of feeding one byte
type Result struct {
	Outcome Outcome
	Angles  JointAngles
}

// Decoder runs the frame state machine over a byte stream.
//
// A Decoder is not safe for concurrent use. Bytes must be delivered one at a
// time, each fully processed before the next.
type Decoder struct {
	state     State
	stats     *Statistics
	rawBuffer []byte // Raw bytes of the candidate frame, including framing
}

// NewDecoder creates a new frame decoder in the idle state
func NewDecoder() *Decoder {
	return &Decoder{
		stats:     NewStatistics(),
		rawBuffer: make([]byte, 0, FrameSize),
	}
}

// Reset returns the decoder to idle, dropping any partial frame
func (d *Decoder) Reset() {
	d.state = State{}
	d.rawBuffer = d.rawBuffer[:0]
}

// State returns the current state machine state
func (d *Decoder) State() State {
	return d.state
}

// Stats returns the decoder's running statistics
func (d *Decoder) Stats() *Statistics {
	return d.stats
}

// GetRawBytes returns the raw bytes of the frame currently being collected.
// After a frame completes or is dropped, the bytes stay available until the
// next byte is fed.
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns the decoded angles and true on the byte that completes a frame.
func (d *Decoder) DecodeByte(b byte) (JointAngles, bool) {
	r := d.Feed(b)
	return r.Angles, r.Outcome == OutcomeFrame
}

// Feed processes a single byte and reports what happened to it
func (d *Decoder) Feed(b byte) Result {
	prev := d.state
	next, angles, ok := Step(prev, b)
	d.state = next

	var r Result
	switch {
	case ok:
		d.rawBuffer = append(d.rawBuffer, b)
		r = Result{Outcome: OutcomeFrame, Angles: angles}
	case prev.Phase == StateIdle && next.Phase == StateIdle:
		d.rawBuffer = d.rawBuffer[:0]
		r = Result{Outcome: OutcomeDiscarded}
	case prev.Phase == StateAwaitFooter:
		d.rawBuffer = append(d.rawBuffer, b)
		r = Result{Outcome: OutcomeFooterMismatch}
	case prev.Phase == StateIdle:
		// Header accepted, start a new candidate frame
		d.rawBuffer = append(d.rawBuffer[:0], b)
		r = Result{Outcome: OutcomeNone}
	default:
		d.rawBuffer = append(d.rawBuffer, b)
		r = Result{Outcome: OutcomeNone}
	}

	d.stats.Update(r)
	return r
}
