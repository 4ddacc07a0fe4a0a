// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Colastat - SICK TiM CoLa-A client
//
// A CLI tool for sending CoLa-A telegrams to SICK TiM rangefinders,
// decoding their scans and recording or monitoring them.

package main

import (
	"os"

	"github.com/Thermoquad/colastat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
