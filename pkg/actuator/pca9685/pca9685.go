// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package pca9685 drives the arm's servos from a PCA9685 16-channel PWM
// controller over I2C.
//
// The chip latches new output values on the I2C STOP condition when MODE2.OCH
// is clear. Committing writes the registers of all four channels in a single
// auto-increment transaction, so the STOP that ends it is the sync trigger.
package pca9685

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"github.com/Thermoquad/armlink/pkg/actuator"
)

const (
	DefaultAddr = 0x40

	RegMode1    = 0x00
	RegMode2    = 0x01
	RegLEDBase  = 0x06 // LED0_ON_L; each output has ON_L, ON_H, OFF_L, OFF_H
	RegPreScale = 0xFE

	mode1Sleep   = 0x10
	mode1AutoInc = 0x20
	mode1Restart = 0x80
	mode2OutDrv  = 0x04 // totem pole outputs, OCH clear: update on STOP

	// Pre-scaler for 50 Hz from the 25 MHz internal oscillator
	prescale50Hz = 0x79

	// Counts per PWM period
	Resolution = 4096

	MaxOutputs = 16
)

// Bus is the subset of an I2C device the driver needs
type Bus interface {
	Tx(w, r []byte) error
}

// Options configures a Driver
type Options struct {
	// FirstChannel is the PCA9685 output wired to the Base servo. The other
	// joints follow on the next three outputs.
	FirstChannel int
	// PeriodTicks is the timer period the duty values are expressed in
	PeriodTicks uint32
}

// Driver implements actuator.Hardware on a PCA9685
type Driver struct {
	bus  Bus
	opts Options

	mu     sync.Mutex
	staged [actuator.NumChannels]uint32
	live   [actuator.NumChannels]uint32
	err    error
}

// New configures the chip for 50 Hz servo output and returns a driver
func New(bus Bus, opts Options) (*Driver, error) {
	if opts.FirstChannel < 0 || opts.FirstChannel+actuator.NumChannels > MaxOutputs {
		return nil, fmt.Errorf("first channel %d out of range (0-%d)", opts.FirstChannel, MaxOutputs-actuator.NumChannels)
	}
	if opts.PeriodTicks == 0 {
		opts.PeriodTicks = actuator.DefaultPeriodTicks
	}

	d := &Driver{bus: bus, opts: opts}
	if err := d.configure(); err != nil {
		return nil, fmt.Errorf("failed to configure PCA9685: %w", err)
	}
	return d, nil
}

// Open initializes the host, opens the named I2C bus ("" for the first one)
// and returns a configured driver along with the bus closer
func Open(busName string, addr uint16, opts Options) (*Driver, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}

	d, err := New(&i2c.Dev{Bus: bus, Addr: addr}, opts)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return d, bus, nil
}

func (d *Driver) writeReg(reg byte, value byte) error {
	return d.bus.Tx([]byte{reg, value}, nil)
}

func (d *Driver) configure() error {
	// Pre-scaler can only be written while asleep
	if err := d.writeReg(RegMode1, mode1Sleep); err != nil {
		return err
	}
	if err := d.writeReg(RegPreScale, prescale50Hz); err != nil {
		return err
	}
	if err := d.writeReg(RegMode2, mode2OutDrv); err != nil {
		return err
	}
	if err := d.writeReg(RegMode1, mode1AutoInc); err != nil {
		return err
	}
	// Oscillator needs 500 us to stabilize before restart
	time.Sleep(time.Millisecond)
	return d.writeReg(RegMode1, mode1AutoInc|mode1Restart)
}

// Stage implements actuator.Hardware
func (d *Driver) Stage(ch actuator.Channel, value uint32) {
	if ch < 0 || int(ch) >= actuator.NumChannels {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staged[ch] = value
}

// CommitAll implements actuator.Hardware. It writes all four outputs in one
// transaction. Unstaged channels are rewritten with their current value.
func (d *Driver) CommitAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := make([]byte, 0, 1+4*actuator.NumChannels)
	w = append(w, RegLEDBase+byte(4*d.opts.FirstChannel))
	for _, ch := range actuator.Channels {
		off := d.counts(d.staged[ch])
		w = append(w, 0, 0, byte(off), byte(off>>8))
	}

	if err := d.bus.Tx(w, nil); err != nil {
		d.err = err
		glog.Errorf("pca9685: commit failed: %v", err)
		return
	}
	d.live = d.staged
	glog.V(2).Infof("pca9685: committed %v", d.live)
}

// counts converts a down-counting compare value into PCA9685 OFF counts
func (d *Driver) counts(duty uint32) uint16 {
	high := actuator.HighTicks(duty, d.opts.PeriodTicks)
	c := uint64(high) * Resolution / uint64(d.opts.PeriodTicks+1)
	if c >= Resolution {
		c = Resolution - 1
	}
	return uint16(c)
}

// Live returns the last values successfully committed
func (d *Driver) Live() [actuator.NumChannels]uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Err returns the last I2C error seen while committing
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Sleep puts the chip in low power mode, turning all outputs off
func (d *Driver) Sleep() error {
	return d.writeReg(RegMode1, mode1AutoInc|mode1Sleep)
}
