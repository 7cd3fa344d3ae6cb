// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/Thermoquad/armlink/pkg/actuator"
)

var calibrationCmd = &cobra.Command{
	Use:   "calibration",
	Short: "Show the effective calibration and duty table",
	Long: `Print the calibration the receiver would use, as YAML.

Without --calibration the built-in defaults are shown. The duty table lists
the compare register value and pulse width in ticks for 0, 90 and 180 degrees
on every channel, which is handy when checking a servo with a scope.

The output can be saved and edited as a calibration file; the duty_table
section must be removed first.`,
	RunE: runCalibration,
}

func init() {
	rootCmd.AddCommand(calibrationCmd)
	calibrationCmd.Flags().StringVar(&calibrationPath, "calibration", "", "YAML calibration file")
}

// dutyRow is one line of the duty table
type dutyRow struct {
	Angle     uint8  `yaml:"angle"`
	Duty      uint32 `yaml:"duty"`
	HighTicks uint32 `yaml:"high_ticks"`
}

var dutyTableAngles = []uint8{0, 90, 180}

// dutyTable maps each channel name to its rows for the reference angles
func dutyTable(cfg actuator.Config) yaml.MapSlice {
	table := make(yaml.MapSlice, 0, actuator.NumChannels)
	for _, ch := range actuator.Channels {
		rows := make([]dutyRow, 0, len(dutyTableAngles))
		for _, angle := range dutyTableAngles {
			duty := cfg.Duty(ch, angle)
			rows = append(rows, dutyRow{
				Angle:     angle,
				Duty:      duty,
				HighTicks: actuator.HighTicks(duty, cfg.PeriodTicks),
			})
		}
		table = append(table, yaml.MapItem{Key: strings.ToLower(ch.String()), Value: rows})
	}
	return table
}

func runCalibration(cmd *cobra.Command, args []string) error {
	cfg, err := loadCalibration()
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(yaml.MapSlice{
		{Key: "calibration", Value: cfg},
		{Key: "duty_table", Value: dutyTable(cfg)},
	})
	if err != nil {
		return fmt.Errorf("failed to encode calibration: %w", err)
	}

	if calibrationPath == "" {
		fmt.Printf("# built-in defaults\n")
	} else {
		fmt.Printf("# %s\n", calibrationPath)
	}
	fmt.Print(string(out))
	return nil
}
