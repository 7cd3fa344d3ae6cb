// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/armlink/pkg/armproto"
)

//////////////////////////////////////////////////////////////
// Key Bindings
//////////////////////////////////////////////////////////////

type jogKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Left  key.Binding
	Right key.Binding
	Claw  key.Binding
	Reset key.Binding
	Quit  key.Binding
}

func (k jogKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Left, k.Right, k.Claw, k.Reset, k.Quit}
}

func (k jogKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Claw, k.Reset, k.Quit},
	}
}

var jogKeys = jogKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "prev joint"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "next joint"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "decrease"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "increase"),
	),
	Claw: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "toggle claw"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// jogModel is the Bubble Tea model for the jog TUI
type jogModel struct {
	connMgr  *connectionManager
	connInfo string

	angles   armproto.JointAngles
	selected armproto.Joint
	step     int
	sent     uint64

	bars [armproto.NumJoints]progress.Model
	help help.Model

	errorLog      []errorLogEntry
	maxLogEntries int

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialJogModel(connMgr *connectionManager, connInfo string, step int) *jogModel {
	m := &jogModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		angles:        armproto.DefaultAngles,
		selected:      armproto.JointBase,
		step:          step,
		help:          help.New(),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	for i := range m.bars {
		m.bars[i] = progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage())
	}
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m *jogModel) Init() tea.Cmd {
	return nil
}

func (m *jogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry(fmt.Sprintf("Reconnected: %s", msg.connInfo), false)
		return m, m.sendPosition("Resent current position")
	}

	return m, nil
}

func (m *jogModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, jogKeys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, jogKeys.Up):
		m.selected = (m.selected + armproto.NumJoints - 1) % armproto.NumJoints
		return m, nil

	case key.Matches(msg, jogKeys.Down):
		m.selected = (m.selected + 1) % armproto.NumJoints
		return m, nil

	case key.Matches(msg, jogKeys.Left):
		return m, m.moveSelected(-m.step)

	case key.Matches(msg, jogKeys.Right):
		return m, m.moveSelected(m.step)

	case key.Matches(msg, jogKeys.Claw):
		claw := uint8(armproto.MaxAngle)
		if m.angles.Claw >= armproto.MaxAngle/2 {
			claw = armproto.MinAngle
		}
		m.angles = m.angles.With(armproto.JointClaw, claw)
		return m, m.sendPosition(fmt.Sprintf("CLAW -> %d", claw))

	case key.Matches(msg, jogKeys.Reset):
		m.angles = armproto.DefaultAngles
		return m, m.sendPosition("Reset to boot position")
	}

	return m, nil
}

// moveSelected shifts the selected joint by delta degrees, clamped to 0..180
func (m *jogModel) moveSelected(delta int) tea.Cmd {
	v := int(m.angles.Get(m.selected)) + delta
	v = max(armproto.MinAngle, min(armproto.MaxAngle, v))
	if uint8(v) == m.angles.Get(m.selected) {
		return nil
	}
	m.angles = m.angles.With(m.selected, uint8(v))
	return m.sendPosition(fmt.Sprintf("%s -> %d", m.selected, v))
}

// sendPosition writes the current angles as one frame. On failure it starts
// a reconnect and the position is resent once the connection is back.
func (m *jogModel) sendPosition(what string) tea.Cmd {
	if m.connectionLost {
		m.addLogEntry(fmt.Sprintf("%s (pending, connection lost)", what), true)
		return nil
	}

	if err := m.connMgr.send(m.angles); err != nil {
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Failed to send frame: %v", err), true)
		return m.connMgr.reconnectCmd()
	}

	m.sent++
	m.addLogEntry(what, false)
	return nil
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m *jogModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("ARMLINK - JOG"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s | Step: %d° | Frames sent: %d",
		m.connInfo, m.step, m.sent)))
	s.WriteString("\n\n")

	if m.connectionLost {
		s.WriteString(errorStyle.Render("✗ Connection lost, reconnecting..."))
		s.WriteString("\n\n")
	}

	joints := strings.Builder{}
	for _, j := range armproto.Joints {
		label := fmt.Sprintf(" %-9s", j.String())
		if j == m.selected {
			label = selectedStyle.Render(label)
		} else {
			label = labelStyle.Render(label)
		}
		angle := m.angles.Get(j)
		joints.WriteString(fmt.Sprintf("%s %s %s\n",
			label,
			m.bars[j].ViewAs(float64(angle)/float64(armproto.MaxAngle)),
			valueStyle.Render(fmt.Sprintf("%3d°", angle)),
		))
	}
	s.WriteString(boxStyle.Render(strings.TrimRight(joints.String(), "\n")))
	s.WriteString("\n\n")

	frame := armproto.EncodeFrame(m.angles)
	s.WriteString(headerStyle.Render("Frame: " + armproto.FormatRawBytes(frame[:])))
	s.WriteString("\n\n")

	// Event log (most recent last)
	available := m.height - 16
	if available < 3 {
		available = 3
	}
	start := 0
	if len(m.errorLog) > available {
		start = len(m.errorLog) - available
	}
	for _, entry := range m.errorLog[start:] {
		ts := entry.timestamp.Format("15:04:05")
		if entry.isError {
			s.WriteString(fmt.Sprintf("  %s %s\n", headerStyle.Render(ts), errorStyle.Render(entry.message)))
		} else {
			s.WriteString(fmt.Sprintf("  %s %s\n", headerStyle.Render(ts), entry.message))
		}
	}
	s.WriteString("\n")
	s.WriteString(m.help.View(jogKeys))

	return s.String()
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *jogModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}
