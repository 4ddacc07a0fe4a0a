// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/colastat/internal/sink"
	"github.com/Thermoquad/colastat/pkg/cola"
)

var replayJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after the config file, TIM_* environment
variables and flags have been applied. The output can be saved and passed
back with --config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <file.cbor>",
	Short: "Print scans from a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := sink.ReadRecording(args[0])
		for i, r := range records {
			fmt.Printf("[%d] ", i)
			if replayJSON {
				if err := printJSON(r); err != nil {
					return err
				}
				continue
			}
			fmt.Print(cola.FormatScan(r))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd, replayCmd)
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print scans as JSON")
}
