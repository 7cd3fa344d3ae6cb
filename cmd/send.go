// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/armlink/pkg/armproto"
)

var (
	sendCount    int
	sendInterval int
)

var sendCmd = &cobra.Command{
	Use:   "send <base> <shoulder> <elbow> <claw>",
	Short: "Send one position frame",
	Long: `Encode the four joint angles into a frame and write it to the connection.

Angles are in degrees. Values from 0 to 255 are accepted so the receiver's
clamping can be exercised; anything above 180 is reported.

Example:
  armlink send -p /dev/ttyUSB0 90 45 120 0`,
	Args: cobra.ExactArgs(armproto.NumJoints),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendCount, "count", 1, "Number of times to send the frame")
	sendCmd.Flags().IntVar(&sendInterval, "interval", 100, "Milliseconds between repeated frames")
}

// parseAngles parses base, shoulder, elbow and claw in that order
func parseAngles(args []string) (armproto.JointAngles, error) {
	var a armproto.JointAngles
	if len(args) != armproto.NumJoints {
		return a, fmt.Errorf("expected %d angles, got %d", armproto.NumJoints, len(args))
	}
	for i, j := range armproto.Joints {
		v, err := strconv.ParseUint(args[i], 10, 8)
		if err != nil {
			return a, fmt.Errorf("invalid %s angle %q: %w", j, args[i], err)
		}
		a = a.With(j, uint8(v))
	}
	return a, nil
}

// writeFrame encodes a and writes the whole frame to w
func writeFrame(w io.Writer, a armproto.JointAngles) error {
	frame := armproto.EncodeFrame(a)
	n, err := w.Write(frame[:])
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	angles, err := parseAngles(args)
	if err != nil {
		return err
	}
	for _, v := range armproto.ValidateAngles(angles) {
		fmt.Printf("Warning: %s\n", v.Message)
	}

	// Open connection (serial, WebSocket or stdout)
	conn, _, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	for i := 0; i < sendCount; i++ {
		if i > 0 {
			time.Sleep(time.Duration(sendInterval) * time.Millisecond)
		}
		if err := writeFrame(conn, angles); err != nil {
			return fmt.Errorf("failed to send frame: %w", err)
		}
	}

	if !useStdin {
		frame := armproto.EncodeFrame(angles)
		fmt.Printf("Sent %s (%s)\n", armproto.FormatAngles(angles), armproto.FormatRawBytes(frame[:]))
	}
	return nil
}
