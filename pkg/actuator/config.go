// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actuator

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/Thermoquad/armlink/pkg/armproto"
)

// Timer defaults: 16 MHz / 64 = 250 kHz (4 us per tick), 50 Hz period
const (
	DefaultPeriodTicks = 4999 // timer load value, N-1
	DefaultMinTicks    = 150  // 0.6 ms
	DefaultMaxTicks    = 600  // 2.4 ms
)

// ErrInvalidCalibration is returned when a calibration cannot be applied
var ErrInvalidCalibration = errors.New("invalid calibration")

// Calibration is the pulse range of one servo, in timer ticks
type Calibration struct {
	MinTicks uint32 `yaml:"min_ticks"`
	MaxTicks uint32 `yaml:"max_ticks"`
}

// Config is the calibration of all four channels plus the shared period
type Config struct {
	PeriodTicks uint32                   `yaml:"period_ticks"`
	Channels    [NumChannels]Calibration `yaml:"-"`
}

// DefaultCalibration is the calibration used for any channel not configured
var DefaultCalibration = Calibration{MinTicks: DefaultMinTicks, MaxTicks: DefaultMaxTicks}

// DefaultConfig returns the stock calibration for every channel
func DefaultConfig() Config {
	cfg := Config{PeriodTicks: DefaultPeriodTicks}
	for _, ch := range Channels {
		cfg.Channels[ch] = DefaultCalibration
	}
	return cfg
}

// Validate checks that every channel's pulse range fits in the period
func (c Config) Validate() error {
	if c.PeriodTicks == 0 {
		return fmt.Errorf("%w: period_ticks must be positive", ErrInvalidCalibration)
	}
	for _, ch := range Channels {
		cal := c.Channels[ch]
		if cal.MinTicks >= cal.MaxTicks {
			return fmt.Errorf("%w: %s min_ticks %d must be below max_ticks %d",
				ErrInvalidCalibration, ch, cal.MinTicks, cal.MaxTicks)
		}
		if cal.MaxTicks > c.PeriodTicks {
			return fmt.Errorf("%w: %s max_ticks %d exceeds period_ticks %d",
				ErrInvalidCalibration, ch, cal.MaxTicks, c.PeriodTicks)
		}
	}
	return nil
}

// Duty maps an angle to the compare register value for one channel
func (c Config) Duty(ch Channel, angle uint8) uint32 {
	return MapAngleToDuty(angle, c.Channels[ch], c.PeriodTicks)
}

// Duties maps a full set of joint angles to register values in channel order
func (c Config) Duties(a armproto.JointAngles) [NumChannels]uint32 {
	var out [NumChannels]uint32
	for _, ch := range Channels {
		out[ch] = c.Duty(ch, a.Get(ch))
	}
	return out
}

// configFile is the YAML layout of a calibration file
type configFile struct {
	PeriodTicks uint32       `yaml:"period_ticks,omitempty"`
	Base        *Calibration `yaml:"base,omitempty"`
	Shoulder    *Calibration `yaml:"shoulder,omitempty"`
	Elbow       *Calibration `yaml:"elbow,omitempty"`
	Claw        *Calibration `yaml:"claw,omitempty"`
}

func (f *configFile) channels() [NumChannels]**Calibration {
	return [NumChannels]**Calibration{&f.Base, &f.Shoulder, &f.Elbow, &f.Claw}
}

// ParseConfig parses a YAML calibration. Missing fields keep their defaults.
func ParseConfig(data []byte) (Config, error) {
	var f configFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return Config{}, fmt.Errorf("failed to parse calibration: %w", err)
	}

	cfg := DefaultConfig()
	if f.PeriodTicks != 0 {
		cfg.PeriodTicks = f.PeriodTicks
	}
	for ch, cal := range f.channels() {
		if *cal == nil {
			continue
		}
		if (*cal).MinTicks != 0 {
			cfg.Channels[ch].MinTicks = (*cal).MinTicks
		}
		if (*cal).MaxTicks != 0 {
			cfg.Channels[ch].MaxTicks = (*cal).MaxTicks
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML calibration file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read calibration %s: %w", path, err)
	}
	return ParseConfig(data)
}

// MarshalYAML implements yaml.Marshaler
func (c Config) MarshalYAML() (interface{}, error) {
	f := configFile{PeriodTicks: c.PeriodTicks}
	for ch, cal := range f.channels() {
		v := c.Channels[ch]
		*cal = &v
	}
	return f, nil
}
