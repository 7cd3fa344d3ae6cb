// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package arm

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/armlink/pkg/actuator"
	"github.com/Thermoquad/armlink/pkg/armproto"
)

type call struct {
	commit bool
	ch     actuator.Channel
	value  uint32
}

type mockHardware struct {
	calls []call
}

func (m *mockHardware) Stage(ch actuator.Channel, value uint32) {
	m.calls = append(m.calls, call{ch: ch, value: value})
}

func (m *mockHardware) CommitAll() {
	m.calls = append(m.calls, call{commit: true})
}

// commits splits the call log at every commit and checks each group stages
// all four channels exactly once before committing
func (m *mockHardware) commits(t *testing.T) [][actuator.NumChannels]uint32 {
	t.Helper()
	var out [][actuator.NumChannels]uint32
	var cur [actuator.NumChannels]uint32
	seen := map[actuator.Channel]bool{}
	for _, c := range m.calls {
		if c.commit {
			require.Len(t, seen, actuator.NumChannels, "commit issued before all channels were staged")
			out = append(out, cur)
			seen = map[actuator.Channel]bool{}
			continue
		}
		require.False(t, seen[c.ch], "channel %s staged twice in one commit", c.ch)
		seen[c.ch] = true
		cur[c.ch] = c.value
	}
	require.Empty(t, seen, "channels staged without a commit")
	return out
}

func TestController_BootCommitsDefaults(t *testing.T) {
	hw := &mockHardware{}
	c := New(hw, actuator.DefaultConfig())
	c.Boot()

	commits := hw.commits(t)
	require.Len(t, commits, 1)
	assert.Equal(t, actuator.DefaultConfig().Duties(armproto.DefaultAngles), commits[0])
	assert.Equal(t, armproto.DefaultAngles, c.Position())
}

func TestController_HandleByteBootsFirst(t *testing.T) {
	hw := &mockHardware{}
	c := New(hw, actuator.DefaultConfig())
	c.HandleByte(0x00)

	require.Len(t, hw.commits(t), 1)
}

func TestController_ConcreteScenario(t *testing.T) {
	bank := actuator.NewBank()
	c := New(bank, actuator.DefaultConfig())
	c.Boot()
	bootLive := bank.Live()

	for _, b := range []byte{0xFF, 0x5A, 0x5A, 0x5A, 0x00, 0xFE} {
		c.HandleByte(b)
	}

	assert.Equal(t, armproto.DefaultAngles, c.Position())
	assert.Equal(t, bootLive, bank.Live())
	assert.Equal(t, uint64(2), bank.Commits())
}

func TestController_FrameCommitsAtomically(t *testing.T) {
	hw := &mockHardware{}
	c := New(hw, actuator.DefaultConfig())
	c.Boot()

	frame := armproto.EncodeFrame(armproto.JointAngles{Base: 10, Shoulder: 20, Elbow: 30, Claw: 40})
	for _, b := range frame {
		c.HandleByte(b)
	}

	commits := hw.commits(t)
	require.Len(t, commits, 2)
	assert.Equal(t, actuator.DefaultConfig().Duties(armproto.JointAngles{Base: 10, Shoulder: 20, Elbow: 30, Claw: 40}), commits[1])
}

func TestController_BadFrameLeavesPosition(t *testing.T) {
	hw := &mockHardware{}
	c := New(hw, actuator.DefaultConfig())

	for _, b := range []byte{0xFF, 1, 2, 3, 4, 0x00} {
		c.HandleByte(b)
	}

	assert.Equal(t, armproto.DefaultAngles, c.Position())
	assert.Len(t, hw.commits(t), 1, "only the boot commit is expected")
	assert.Equal(t, uint64(1), c.Stats().FooterErrors)
}

func TestController_Observer(t *testing.T) {
	var seen []armproto.JointAngles
	c := New(actuator.NewBank(), actuator.DefaultConfig(),
		WithObserver(func(a armproto.JointAngles) { seen = append(seen, a) }),
	)
	c.Boot()
	frame := armproto.EncodeFrame(armproto.JointAngles{Base: 5, Shoulder: 6, Elbow: 7, Claw: 8})
	for _, b := range frame {
		c.HandleByte(b)
	}

	assert.Equal(t, []armproto.JointAngles{
		armproto.DefaultAngles,
		{Base: 5, Shoulder: 6, Elbow: 7, Claw: 8},
	}, seen)
}

// ============================================================
// Pump Tests
// ============================================================

func TestPump_DeliversInOrder(t *testing.T) {
	bank := actuator.NewBank()
	c := New(bank, actuator.DefaultConfig())

	var stream []byte
	stream = append(stream, 0x01, 0x02)
	stream = armproto.AppendFrame(stream, armproto.JointAngles{Base: 10, Shoulder: 10, Elbow: 10, Claw: 10})
	stream = armproto.AppendFrame(stream, armproto.JointAngles{Base: 170, Shoulder: 20, Elbow: 60, Claw: 180})

	err := Pump(context.Background(), iotest.OneByteReader(bytes.NewReader(stream)), c)
	require.NoError(t, err)

	assert.Equal(t, armproto.JointAngles{Base: 170, Shoulder: 20, Elbow: 60, Claw: 180}, c.Position())
	assert.Equal(t, uint64(2), c.Stats().FramesDecoded)
	assert.Equal(t, uint64(3), bank.Commits())
}

func TestPump_ReadError(t *testing.T) {
	c := New(actuator.NewBank(), actuator.DefaultConfig())
	boom := errors.New("boom")

	err := Pump(context.Background(), iotest.ErrReader(boom), c)
	assert.ErrorIs(t, err, boom)
}

func TestPump_Cancelled(t *testing.T) {
	c := New(actuator.NewBank(), actuator.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Pump(ctx, bytes.NewReader([]byte{0xFF}), c)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), c.Stats().BytesReceived)
}
