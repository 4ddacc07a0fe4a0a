// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/colastat/pkg/cola"
	"github.com/Thermoquad/colastat/pkg/tim"
)

var probeCommand string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for an answer",
	Long: `Connect, send one read request and wait for the answer until --timeout.

Exit codes:
  0 - Answer received before timeout
  1 - Timeout, device error or malformed answer
  2 - Connection error

Useful for testing connectivity to a TiM or a WebSocket bridge from scripts.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVar(&probeCommand, "command", cola.ReadVariable(cola.VarDeviceIdent), "Telegram to send")
}

// probeExitCode maps an exchange error to the probe exit code
func probeExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case tim.IsConnectionError(err), errors.Is(err, tim.ErrNotConnected):
		return 2
	default:
		return 1
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Colastat - Probe\n")
	fmt.Printf("Timeout: %s\n", cfg.Timeout())

	dev, connInfo, err := OpenDevice(cmd.Context(), tim.Session{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Sending %q...\n\n", probeCommand)

	start := time.Now()
	answer, err := dev.Exchange(probeCommand)
	code := probeExitCode(err)

	switch {
	case code == 0:
		fmt.Printf("SUCCESS: Received answer in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  %s", cola.FormatPayload(answer))
	case tim.IsTimeout(err):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No answer within %s\n", cfg.Timeout())
	case code == 2:
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
	}

	dev.Close()
	os.Exit(code)
	return nil
}
