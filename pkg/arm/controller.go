// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package arm ties the frame decoder to the actuation committer.
//
// A Controller owns the decoder state, the payload buffer and the commanded
// position. It assumes byte notifications are serialized by the caller: each
// HandleByte call completes before the next one starts. Under that
// assumption no locking is needed, and none is done.
package arm

import (
	"github.com/Thermoquad/armlink/pkg/actuator"
	"github.com/Thermoquad/armlink/pkg/armproto"
)

// Observer is called after every committed position, on the handling
// goroutine. It must not block.
type Observer func(armproto.JointAngles)

// Option configures a Controller
type Option func(*Controller)

// WithObserver adds an observer for committed positions
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

// Controller turns received bytes into committed actuator positions
type Controller struct {
	decoder   *armproto.Decoder
	committer *actuator.Committer
	position  armproto.JointAngles
	booted    bool
	observers []Observer
}

// New creates a controller driving hw with the given calibration
func New(hw actuator.Hardware, cfg actuator.Config, opts ...Option) *Controller {
	c := &Controller{
		decoder:   armproto.NewDecoder(),
		committer: actuator.NewCommitter(hw, cfg),
		position:  armproto.DefaultAngles,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Boot commits the initial position to every channel. It must run before
// the first byte is handled; HandleByte calls it if it has not run yet.
func (c *Controller) Boot() {
	c.commit(c.position)
	c.booted = true
}

// HandleByte processes one received byte. When the byte completes a frame,
// the commanded position is replaced and committed.
func (c *Controller) HandleByte(b byte) {
	if !c.booted {
		c.Boot()
	}
	if angles, ok := c.decoder.DecodeByte(b); ok {
		c.commit(angles)
	}
}

func (c *Controller) commit(a armproto.JointAngles) {
	c.position = a
	c.committer.Apply(a)
	for _, o := range c.observers {
		o(a)
	}
}

// Position returns the last committed position
func (c *Controller) Position() armproto.JointAngles {
	return c.position
}

// Config returns the calibration in use
func (c *Controller) Config() actuator.Config {
	return c.committer.Config()
}

// Stats returns the decoder statistics
func (c *Controller) Stats() *armproto.Statistics {
	return c.decoder.Stats()
}

// Decoder returns the underlying frame decoder
func (c *Controller) Decoder() *armproto.Decoder {
	return c.decoder
}
