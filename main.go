// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Armlink - servo arm command link
//
// Receives 6-byte angle frames from a host over serial, WebSocket or stdin
// and commits all four servo positions in one synchronized update.

package main

import (
	"os"

	"github.com/Thermoquad/armlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
