// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actuator

import "github.com/Thermoquad/armlink/pkg/armproto"

// Committer drives all four channels from a set of joint angles
type Committer struct {
	hw  Hardware
	cfg Config
}

// NewCommitter creates a committer for hw using cfg
func NewCommitter(hw Hardware, cfg Config) *Committer {
	return &Committer{hw: hw, cfg: cfg}
}

// Config returns the calibration in use
func (c *Committer) Config() Config {
	return c.cfg
}

// Apply stages every channel and then issues a single commit, so the
// hardware never shows a mix of old and new positions. Staging order is
// Base, Shoulder, Elbow, Claw.
func (c *Committer) Apply(a armproto.JointAngles) {
	duties := c.cfg.Duties(a)
	for _, ch := range Channels {
		c.hw.Stage(ch, duties[ch])
	}
	c.hw.CommitAll()
}
