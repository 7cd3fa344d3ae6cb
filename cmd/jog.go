// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/armlink/pkg/armproto"
)

var (
	jogStep int
)

var jogCmd = &cobra.Command{
	Use:   "jog",
	Short: "Interactive TUI for moving the arm",
	Long: `Move the arm joint by joint from an interactive terminal UI.

Every change sends one complete frame carrying all four angles, so the arm
always moves to a consistent position.

Keys:
  up/down     Select joint
  left/right  Move the selected joint by --step degrees
  c           Toggle the claw between open (0) and closed (180)
  r           Reset to the boot position
  q           Quit

If a write fails the connection is reopened with exponential backoff and the
current position is sent again.

Supports serial and WebSocket connections.`,
	RunE: runJog,
}

func init() {
	rootCmd.AddCommand(jogCmd)
	jogCmd.Flags().IntVar(&jogStep, "step", 5, "Degrees per key press")
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	done     chan struct{}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// send writes one frame on the current connection
func (cm *connectionManager) send(a armproto.JointAngles) error {
	conn := cm.getConn()
	if conn == nil {
		return ErrConnectionClosed
	}
	return writeFrame(conn, a)
}

// reconnect attempts to reconnect with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (cm *connectionManager) reconnect() bool {
	// Close old connection
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
	cm.setConn(nil, "")

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			return true
		}

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// reconnectCmd reopens the connection in the background
func (cm *connectionManager) reconnectCmd() tea.Cmd {
	return func() tea.Msg {
		if !cm.reconnect() {
			return nil
		}
		cm.mu.RLock()
		defer cm.mu.RUnlock()
		return reconnectedMsg{connInfo: cm.connInfo}
	}
}

func runJog(cmd *cobra.Command, args []string) error {
	if useStdin {
		return fmt.Errorf("jog needs the terminal, use --port or --url")
	}
	if jogStep < 1 || jogStep > armproto.MaxAngle {
		return fmt.Errorf("--step must be between 1 and %d", armproto.MaxAngle)
	}

	// Open initial connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	cm := &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		done:     make(chan struct{}),
	}

	// Put the arm in a known position before the first key press
	if err := cm.send(armproto.DefaultAngles); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send boot position: %w", err)
	}

	m := initialJogModel(cm, connInfo, jogStep)
	m.sent++
	m.addLogEntry("Sent boot position", false)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()

	close(cm.done) // Stop any reconnect in progress
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
