// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/armlink/pkg/armproto"
)

var (
	rawLogShowDuty bool
	rawLogShowDrop bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display received frames in human-readable format",
	Long: `Continuously decode and display arm frames as they arrive.

Each frame is shown with a timestamp and the four joint angles. Angles above
180 are marked with (!) since the receiver clamps them.

Supports serial, WebSocket and stdin connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogShowDuty, "duty", false, "Also show the duty register values for each frame")
	rawLogCmd.Flags().BoolVar(&rawLogShowDrop, "show-dropped", false, "Show frames dropped for a bad footer")
	rawLogCmd.Flags().StringVar(&calibrationPath, "calibration", "", "YAML calibration file (with --duty)")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadCalibration()
	if err != nil {
		return err
	}

	// Open connection (serial, WebSocket or stdin)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Armlink - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := armproto.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if n == 0 && err != nil {
			// A read error on WebSocket or stdin means the stream is gone
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			res := decoder.Feed(buf[i])
			switch res.Outcome {
			case armproto.OutcomeFrame:
				fmt.Print(armproto.FormatFrame(res.Angles, time.Now()))
				if rawLogShowDuty {
					d := cfg.Duties(res.Angles)
					fmt.Printf("  duty: base=%d shoulder=%d elbow=%d claw=%d (period %d)\n",
						d[0], d[1], d[2], d[3], cfg.PeriodTicks)
				}
			case armproto.OutcomeFooterMismatch:
				if rawLogShowDrop {
					fmt.Printf("[DROPPED] bad footer: %s\n", armproto.FormatRawBytes(decoder.GetRawBytes()))
				}
			}
		}
	}
}
