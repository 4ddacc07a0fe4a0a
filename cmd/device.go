// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/colastat/pkg/cola"
	"github.com/Thermoquad/colastat/pkg/tim"
)

var (
	sendRaw  bool
	scanRaw  bool
	scanJSON bool
	infoJSON bool
	infoFull bool
	loginLvl string
	nameSave bool
)

var sendCmd = &cobra.Command{
	Use:   "send <telegram...>",
	Short: "Send one telegram and print the answer",
	Long: `Send a CoLa-A telegram and print the device's answer.

The arguments are joined with spaces, so quoting is optional:
  colastat send sRN DeviceIdent
  colastat send "sMN SetAccessMode 03 F4724744"

Device errors (sFA) are printed with their SOPAS name and description.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Request one scan and print it",
	RunE:  runScan,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print device identification and state",
	RunE:  runInfo,
}

var measureCmd = &cobra.Command{
	Use:       "measure start|stop",
	Short:     "Start or stop measurement",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"start", "stop"},
	RunE:      runMeasure,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check access mode credentials",
	Long: `Log in with SetAccessMode and report whether the device accepted it.

The access level only lasts for the connection, so this is mostly useful to
verify a password. The password comes from TIM_PASSWORD or a prompt.`,
	RunE: runLogin,
}

var nameCmd = &cobra.Command{
	Use:   "name [new-name]",
	Short: "Read or set the location name",
	Long: `Without arguments, print the device's location name. With an argument,
write it. Writing needs a login; without --config access settings the
authorized client login is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runName,
}

func init() {
	rootCmd.AddCommand(sendCmd, scanCmd, infoCmd, measureCmd, loginCmd, nameCmd)

	sendCmd.Flags().BoolVar(&sendRaw, "raw", false, "Print the answer payload verbatim")
	scanCmd.Flags().BoolVar(&scanRaw, "raw", false, "Print the undecoded LMDscandata payload")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the decoded scan as JSON")
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Print as JSON")
	infoCmd.Flags().BoolVar(&infoFull, "all", false, "Also read firmware, counters and scan config")
	loginCmd.Flags().StringVar(&loginLvl, "level", cola.UserLevelAuthorizedClient, "User level (02 maintenance, 03 authorized client, 04 service)")
	nameCmd.Flags().BoolVar(&nameSave, "save", false, "Write parameters to EEPROM after setting the name")
}

// withDevice opens the configured device, runs fn and closes it
func withDevice(cmd *cobra.Command, fn func(d *tim.Device) error) error {
	dev, info, err := openConfigured(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()
	log.WithField("connection", info).Debug("Connected")
	return fn(dev)
}

func runSend(cmd *cobra.Command, args []string) error {
	telegram := strings.Join(args, " ")
	return withDevice(cmd, func(d *tim.Device) error {
		answer, err := d.Exchange(telegram)
		if err != nil {
			return err
		}
		if sendRaw {
			fmt.Println(answer)
		} else {
			fmt.Print(cola.FormatPayload(answer))
		}
		return nil
	})
}

func runScan(cmd *cobra.Command, args []string) error {
	return withDevice(cmd, func(d *tim.Device) error {
		if scanRaw {
			payload, err := d.ScanRaw()
			if err != nil {
				return err
			}
			fmt.Println(payload)
			return nil
		}

		scan, err := d.Scan()
		if err != nil {
			return err
		}
		if scanJSON {
			return printJSON(scan)
		}
		fmt.Print(cola.FormatScan(scan))
		return nil
	})
}

// fullInfo is info --all
type fullInfo struct {
	*tim.Info
	Firmware       string           `json:"firmware"`
	OrderNumber    string           `json:"order_number"`
	OperatingHours uint64           `json:"operating_hours"`
	PowerOnCounter uint64           `json:"power_on_counter"`
	ScanConfig     *cola.ScanConfig `json:"scan_config"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withDevice(cmd, func(d *tim.Device) error {
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !infoFull {
			if infoJSON {
				return printJSON(info)
			}
			fmt.Print(info.String())
			return nil
		}

		full := fullInfo{Info: info}
		if full.Firmware, err = d.FirmwareVersion(); err != nil {
			return err
		}
		if full.OrderNumber, err = d.OrderNumber(); err != nil {
			return err
		}
		if full.OperatingHours, err = d.OperatingHours(); err != nil {
			return err
		}
		if full.PowerOnCounter, err = d.PowerOnCounter(); err != nil {
			return err
		}
		if full.ScanConfig, err = d.ScanConfig(); err != nil {
			return err
		}

		if infoJSON {
			return printJSON(full)
		}
		fmt.Print(info.String())
		fmt.Printf("Firmware Version = %s\n", full.Firmware)
		fmt.Printf("Order Number = %s\n", full.OrderNumber)
		fmt.Printf("Operating Hours = %d\n", full.OperatingHours)
		fmt.Printf("Power On Counter = %d\n", full.PowerOnCounter)
		sc := full.ScanConfig
		fmt.Printf("Scan Config = %.2f Hz, %d sector(s), %.4f° from %.4f° to %.4f°\n",
			sc.ScanFrequency, sc.Sectors, sc.AngularResolution, sc.StartAngle, sc.StopAngle)
		return nil
	})
}

func runMeasure(cmd *cobra.Command, args []string) error {
	return withDevice(cmd, func(d *tim.Device) error {
		var err error
		if args[0] == "start" {
			err = d.StartMeasurement()
		} else {
			err = d.StopMeasurement()
		}
		if err != nil {
			return err
		}
		fmt.Printf("Measurement %s\n", map[string]string{"start": "started", "stop": "stopped"}[args[0]])
		return nil
	})
}

func runLogin(cmd *cobra.Command, args []string) error {
	s, err := sessionFor(cfg, loginLvl)
	if err != nil {
		return err
	}
	dev, info, err := OpenDevice(cmd.Context(), s)
	if err != nil {
		return err
	}
	defer dev.Close()
	fmt.Printf("Logged in as user level %s on %s\n", s.UserLevel, info)
	return nil
}

func runName(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return withDevice(cmd, func(d *tim.Device) error {
			name, err := d.LocationName()
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		})
	}

	s, err := sessionFor(cfg, "")
	if err != nil {
		return err
	}
	s.LocationName = args[0]
	dev, _, err := OpenDevice(cmd.Context(), s)
	if err != nil {
		return err
	}
	defer dev.Close()

	if nameSave {
		ok, err := dev.WriteAll()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("device refused to write parameters")
		}
	}
	fmt.Printf("Location name set to %q\n", args[0])
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
