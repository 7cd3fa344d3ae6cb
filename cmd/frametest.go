// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/armlink/pkg/armproto"
)

var (
	frameTestTimeout int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid arm frame",
	Long: `Wait for a valid arm frame on the connection until timeout.

This command connects to a serial port, WebSocket or stdin and waits for any
complete frame (header, four angle bytes, footer). Bytes outside a frame and
frames with a bad footer are ignored.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking wiring and baud rate before running the receiver.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial, WebSocket or stdin)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Armlink - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	decoder := armproto.NewDecoder()
	buf := make([]byte, 128)

	// Channel for frame reception
	frameChan := make(chan armproto.JointAngles, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		for {
			n, err := conn.Read(buf)
			for i := 0; i < n; i++ {
				if angles, ok := decoder.DecodeByte(buf[i]); ok {
					stats := decoder.Stats()
					if skipped := stats.BytesReceived - armproto.FrameSize; skipped > 0 {
						fmt.Printf("(skipped %d bytes before sync, %d bad footers)\n", skipped, stats.FooterErrors)
					}
					frameChan <- angles
					return
				}
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	// Wait for frame or timeout
	select {
	case angles := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Angles: %s\n", armproto.FormatAngles(angles))
		frame := armproto.EncodeFrame(angles)
		fmt.Printf("  Bytes: %s\n", armproto.FormatRawBytes(frame[:]))
		for _, v := range armproto.ValidateAngles(angles) {
			fmt.Printf("  Warning: %s\n", v.Message)
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
