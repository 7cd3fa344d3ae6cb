// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/armlink/pkg/armproto"
)

var (
	replaySpeed  float64
	replayDryRun bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Re-send a recorded session",
	Long: `Send the positions of a recording made with 'run --record' back out as frames.

The delay between frames follows the recorded timestamps, divided by --speed.
With --dry-run the recording is printed and nothing is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "Print the recording without sending")
}

// replayDelay is the wait before sending cur, given the previous record
func replayDelay(prev, cur time.Time, speed float64) time.Duration {
	if prev.IsZero() || !cur.After(prev) {
		return 0
	}
	return time.Duration(float64(cur.Sub(prev)) / speed)
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replaySpeed <= 0 {
		return fmt.Errorf("--speed must be positive")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()
	reader := armproto.NewRecordReader(f)

	var out io.Writer
	if !replayDryRun {
		conn, connInfo, err := OpenConnection()
		if err != nil {
			return err
		}
		defer conn.Close()
		out = conn
		if !useStdin {
			fmt.Printf("Armlink - Replay\n")
			fmt.Printf("Connection: %s\n", connInfo)
			fmt.Printf("Speed: %.2fx\n\n", replaySpeed)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var prev time.Time
	sent := 0
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if replayDryRun {
			fmt.Print(armproto.FormatFrame(rec.Angles, rec.Time))
			continue
		}

		if d := replayDelay(prev, rec.Time, replaySpeed); d > 0 {
			select {
			case <-ctx.Done():
				fmt.Fprintf(os.Stderr, "Interrupted after %d frames\n", sent)
				return nil
			case <-time.After(d):
			}
		}
		prev = rec.Time

		if err := writeFrame(out, rec.Angles); err != nil {
			return fmt.Errorf("failed to send frame %d: %w", sent+1, err)
		}
		sent++
	}

	if !replayDryRun && !useStdin {
		fmt.Printf("Replayed %d frames\n", sent)
	}
	return nil
}
