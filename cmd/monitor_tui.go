// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/armlink/pkg/actuator"
	"github.com/Thermoquad/armlink/pkg/arm"
	"github.com/Thermoquad/armlink/pkg/armproto"
)

// monitorSnapshot is a copy of the receiver state taken on the pump goroutine
type monitorSnapshot struct {
	position armproto.JointAngles
	duties   [actuator.NumChannels]uint32
	stats    armproto.Statistics
}

type monitorEventMsg errorLogEntry

type connectionLostMsg struct {
	err error
}

// monitorFeed hands snapshots from the pump goroutine to the TUI without
// blocking it. Only the latest snapshot is kept.
type monitorFeed struct {
	snapshots chan monitorSnapshot
	events    chan errorLogEntry
}

func newMonitorFeed() *monitorFeed {
	return &monitorFeed{
		snapshots: make(chan monitorSnapshot, 1),
		events:    make(chan errorLogEntry, 64),
	}
}

// push must only be called from the pump goroutine
func (f *monitorFeed) push(c *arm.Controller) {
	snap := monitorSnapshot{
		position: c.Position(),
		duties:   c.Config().Duties(c.Position()),
		stats:    *c.Stats(),
	}
	select {
	case f.snapshots <- snap:
	default:
		select {
		case <-f.snapshots:
		default:
		}
		f.snapshots <- snap
	}
}

func (f *monitorFeed) event(message string, isError bool) {
	select {
	case f.events <- errorLogEntry{timestamp: time.Now(), message: message, isError: isError}:
	default:
	}
}

func (f *monitorFeed) forward(ctx context.Context, p *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-f.snapshots:
			p.Send(snap)
		case ev := <-f.events:
			p.Send(monitorEventMsg(ev))
		}
	}
}

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// monitorModel shows the live position of each joint and the decoder health
type monitorModel struct {
	connInfo      string
	backend       string
	cfg           actuator.Config
	snap          monitorSnapshot
	received      bool
	bars          [armproto.NumJoints]progress.Model
	errorLog      []errorLogEntry
	maxLogEntries int
	lost          error
	width         int
	height        int
	quitting      bool
}

type tickMsg time.Time

func initialMonitorModel(connInfo, backend string, cfg actuator.Config) monitorModel {
	m := monitorModel{
		connInfo:      connInfo,
		backend:       backend,
		cfg:           cfg,
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	for i := range m.bars {
		m.bars[i] = progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage())
	}
	return m
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.snap.stats.CalculateRates()
		return m, tickCmd()

	case monitorSnapshot:
		if msg.stats.FramesDecoded > m.snap.stats.FramesDecoded {
			if bad := armproto.ValidateAngles(msg.position); len(bad) > 0 {
				for _, v := range bad {
					m.addLogEntry(v.Message, false)
				}
			}
		}
		m.snap = msg
		m.received = true

	case monitorEventMsg:
		m.addLogEntry(msg.message, msg.isError)

	case connectionLostMsg:
		m.lost = msg.err
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
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

func (m monitorModel) View() string {
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

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("ARMLINK - RECEIVER"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s | Backend: %s | Press 'q' to quit",
		m.connInfo, m.backend)))
	s.WriteString("\n\n")

	switch {
	case m.lost != nil:
		s.WriteString(errorStyle.Render("✗ Connection lost, holding last position"))
	case m.snap.stats.FramesDecoded == 0:
		s.WriteString(warningStyle.Render("⏳ Holding boot position, waiting for frames..."))
	default:
		s.WriteString(valueStyle.Render("✓ Receiving"))
	}
	s.WriteString("\n\n")

	// Joints
	joints := strings.Builder{}
	for _, j := range armproto.Joints {
		angle := m.snap.position.Get(j)
		if !m.received {
			angle = armproto.DefaultAngles.Get(j)
		}
		frac := float64(min(angle, armproto.MaxAngle)) / float64(armproto.MaxAngle)
		joints.WriteString(fmt.Sprintf("%s %s %s %s\n",
			labelStyle.Render(fmt.Sprintf("%-9s", j.String()+":")),
			m.bars[j].ViewAs(frac),
			valueStyle.Render(fmt.Sprintf("%3d°", angle)),
			headerStyle.Render(fmt.Sprintf("duty %d/%d", m.snap.duties[j], m.cfg.PeriodTicks)),
		))
	}
	s.WriteString(boxStyle.Render(strings.TrimRight(joints.String(), "\n")))
	s.WriteString("\n\n")

	// Statistics
	st := m.snap.stats
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Bytes:"), valueStyle.Render(fmt.Sprintf("%d", st.BytesReceived)),
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.FramesDecoded, st.SuccessRate())),
		labelStyle.Render("Footer Errors:"), func() string {
			if st.FooterErrors > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", st.FooterErrors))
			}
			return valueStyle.Render("0")
		}(),
	))
	if st.NoiseBytes > 0 || st.OutOfRange > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Noise:"), warningStyle.Render(fmt.Sprintf("%d bytes", st.NoiseBytes)),
			labelStyle.Render("Out of range:"), warningStyle.Render(fmt.Sprintf("%d", st.OutOfRange)),
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		labelStyle.Render("Error Rate:"), valueStyle.Render(fmt.Sprintf("%.2f err/s", st.ErrorRate)),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Events:"))
	s.WriteString("\n")

	// Header, status, joints and stats take roughly 20 lines
	available := m.height - 20
	if available < 3 {
		available = 3
	}

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  No events"))
		s.WriteString("\n")
	} else {
		start := 0
		if len(m.errorLog) > available {
			start = len(m.errorLog) - available
		}
		for _, entry := range m.errorLog[start:] {
			ts := entry.timestamp.Format("15:04:05")
			if entry.isError {
				s.WriteString(fmt.Sprintf("  %s %s\n", headerStyle.Render(ts), errorStyle.Render(entry.message)))
			} else {
				s.WriteString(fmt.Sprintf("  %s %s\n", headerStyle.Render(ts), warningStyle.Render(entry.message)))
			}
		}
	}

	return s.String()
}
