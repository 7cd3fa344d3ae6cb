// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actuator

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/Thermoquad/armlink/pkg/armproto"
)

// recordingHardware logs every Stage and CommitAll call in order
type recordingHardware struct {
	calls []string
}

func (h *recordingHardware) Stage(ch Channel, value uint32) {
	h.calls = append(h.calls, fmt.Sprintf("stage %s %d", ch, value))
}

func (h *recordingHardware) CommitAll() {
	h.calls = append(h.calls, "commit")
}

// ============================================================
// Mapping Tests
// ============================================================

func TestMapAngleToDuty_Endpoints(t *testing.T) {
	cal := DefaultCalibration

	assert.Equal(t, uint32(4999-150), MapAngleToDuty(0, cal, DefaultPeriodTicks))
	assert.Equal(t, uint32(4999-375), MapAngleToDuty(90, cal, DefaultPeriodTicks))
	assert.Equal(t, uint32(4999-600), MapAngleToDuty(180, cal, DefaultPeriodTicks))
}

func TestMapAngleToDuty_Floor(t *testing.T) {
	// 1 * 450 / 180 = 2.5 -> 2
	assert.Equal(t, uint32(152), PulseTicks(1, DefaultCalibration))
	// 179 * 450 / 180 = 447.5 -> 447
	assert.Equal(t, uint32(597), PulseTicks(179, DefaultCalibration))
}

func TestMapAngleToDuty_ClampIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels[Claw] = Calibration{MinTicks: 100, MaxTicks: 700}

	for _, ch := range Channels {
		at180 := cfg.Duty(ch, 180)
		for _, a := range []uint8{181, 200, 255} {
			assert.Equal(t, at180, cfg.Duty(ch, a), "%s angle %d", ch, a)
		}
	}
}

func TestMapAngleToDuty_Monotonic(t *testing.T) {
	prev := MapAngleToDuty(0, DefaultCalibration, DefaultPeriodTicks)
	for a := 1; a <= 180; a++ {
		d := MapAngleToDuty(uint8(a), DefaultCalibration, DefaultPeriodTicks)
		require.LessOrEqual(t, d, prev, "duty must not rise with angle (angle %d)", a)
		prev = d
	}
}

func TestMapAngleToDuty_InvalidCalibrationSaturates(t *testing.T) {
	inverted := Calibration{MinTicks: 600, MaxTicks: 150}
	for _, a := range []uint8{0, 90, 180, 255} {
		assert.Equal(t, uint32(600), PulseTicks(a, inverted), "angle %d", a)
		assert.Equal(t, uint32(4999-600), MapAngleToDuty(a, inverted, DefaultPeriodTicks), "angle %d", a)
	}

	// Pulse longer than the period
	for _, a := range []uint8{0, 90, 180} {
		assert.Equal(t, uint32(0), MapAngleToDuty(a, DefaultCalibration, 100), "angle %d", a)
	}
}

func TestCommitter_InvalidCalibrationNeverWraps(t *testing.T) {
	hw := &recordingHardware{}
	cfg := DefaultConfig()
	cfg.Channels[Base] = Calibration{MinTicks: 600, MaxTicks: 150}
	NewCommitter(hw, cfg).Apply(armproto.JointAngles{Base: 180})

	assert.Equal(t, "stage BASE 4399", hw.calls[0])

	hw.calls = nil
	cfg = DefaultConfig()
	cfg.PeriodTicks = 100
	NewCommitter(hw, cfg).Apply(armproto.JointAngles{Base: 180, Shoulder: 180, Elbow: 180, Claw: 180})

	assert.Equal(t, []string{
		"stage BASE 0",
		"stage SHOULDER 0",
		"stage ELBOW 0",
		"stage CLAW 0",
		"commit",
	}, hw.calls)
}

func TestHighTicks(t *testing.T) {
	assert.Equal(t, uint32(375), HighTicks(MapAngleToDuty(90, DefaultCalibration, DefaultPeriodTicks), DefaultPeriodTicks))
	assert.Equal(t, uint32(0), HighTicks(6000, DefaultPeriodTicks))
}

// ============================================================
// Committer Tests
// ============================================================

func TestCommitter_StagesAllThenCommitsOnce(t *testing.T) {
	hw := &recordingHardware{}
	c := NewCommitter(hw, DefaultConfig())

	c.Apply(armproto.JointAngles{Base: 0, Shoulder: 90, Elbow: 180, Claw: 255})

	assert.Equal(t, []string{
		"stage BASE 4849",
		"stage SHOULDER 4624",
		"stage ELBOW 4399",
		"stage CLAW 4399",
		"commit",
	}, hw.calls)
}

func TestCommitter_LastWriteWins(t *testing.T) {
	bank := NewBank()
	c := NewCommitter(bank, DefaultConfig())

	c.Apply(armproto.JointAngles{Base: 10, Shoulder: 20, Elbow: 30, Claw: 40})
	c.Apply(armproto.JointAngles{Base: 50, Shoulder: 60, Elbow: 70, Claw: 80})

	assert.Equal(t, DefaultConfig().Duties(armproto.JointAngles{Base: 50, Shoulder: 60, Elbow: 70, Claw: 80}), bank.Live())
	assert.Equal(t, uint64(2), bank.Commits())
}

// ============================================================
// Bank Tests
// ============================================================

func TestBank_StagingIsInvisibleUntilCommit(t *testing.T) {
	b := NewBank()
	b.Stage(Base, 1)
	b.Stage(Shoulder, 2)
	b.Stage(Elbow, 3)

	assert.Equal(t, [NumChannels]uint32{}, b.Live())

	b.Stage(Claw, 4)
	assert.Equal(t, [NumChannels]uint32{}, b.Live())
	assert.Equal(t, [NumChannels]uint32{1, 2, 3, 4}, b.Shadow())

	b.CommitAll()
	assert.Equal(t, [NumChannels]uint32{1, 2, 3, 4}, b.Live())
}

func TestBank_UnstagedChannelsKeepValue(t *testing.T) {
	b := NewBank()
	for _, ch := range Channels {
		b.Stage(ch, 100)
	}
	b.CommitAll()

	b.Stage(Elbow, 7)
	b.CommitAll()
	assert.Equal(t, [NumChannels]uint32{100, 100, 7, 100}, b.Live())
}

func TestBank_ObserverNeverSeesPartialCommit(t *testing.T) {
	b := NewBank()
	c := NewCommitter(b, DefaultConfig())

	oldAngles := armproto.JointAngles{Base: 0, Shoulder: 0, Elbow: 0, Claw: 0}
	newAngles := armproto.JointAngles{Base: 180, Shoulder: 180, Elbow: 180, Claw: 180}
	oldDuties := DefaultConfig().Duties(oldAngles)
	newDuties := DefaultConfig().Duties(newAngles)
	c.Apply(oldAngles)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var bad error
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			live := b.Live()
			if live != oldDuties && live != newDuties {
				bad = fmt.Errorf("observed partial commit: %v", live)
				return
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		if i%2 == 0 {
			c.Apply(newAngles)
		} else {
			c.Apply(oldAngles)
		}
	}
	close(stop)
	wg.Wait()

	assert.NoError(t, bad)
}

func TestBank_OnCommit(t *testing.T) {
	b := NewBank()
	var got [][NumChannels]uint32
	b.OnCommit(func(live [NumChannels]uint32) {
		got = append(got, live)
	})

	NewCommitter(b, DefaultConfig()).Apply(armproto.DefaultAngles)

	require.Len(t, got, 1)
	assert.Equal(t, DefaultConfig().Duties(armproto.DefaultAngles), got[0])
}

// ============================================================
// Config Tests
// ============================================================

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfig_Overrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
period_ticks: 9999
claw:
  min_ticks: 200
  max_ticks: 500
elbow:
  max_ticks: 650
`))
	require.NoError(t, err)

	assert.Equal(t, uint32(9999), cfg.PeriodTicks)
	assert.Equal(t, Calibration{MinTicks: 200, MaxTicks: 500}, cfg.Channels[Claw])
	assert.Equal(t, Calibration{MinTicks: DefaultMinTicks, MaxTicks: 650}, cfg.Channels[Elbow])
	assert.Equal(t, DefaultCalibration, cfg.Channels[Base])
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"min above max", "base:\n  min_ticks: 700\n"},
		{"max above period", "period_ticks: 500\n"},
		{"unknown field", "wrist:\n  min_ticks: 100\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := ParseConfig([]byte("period_ticks: 500\n"))
	assert.True(t, errors.Is(err, ErrInvalidCalibration))
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels[Shoulder] = Calibration{MinTicks: 120, MaxTicks: 640}

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	parsed, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}
