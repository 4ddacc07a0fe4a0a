// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/colastat/pkg/cola"
)

// Wrappers for the telegrams of the SICK telegram listing. Each one runs a
// single Exchange; device errors come back as *cola.DeviceError and answers
// of the wrong shape as *UnexpectedAnswerError.

// expect runs command and requires the exact answer want
func (d *Device) expect(command, want string) error {
	answer, err := d.Exchange(command)
	if err != nil {
		return err
	}
	if strings.Join(cola.Tokens(answer), " ") != want {
		return d.fail(&UnexpectedAnswerError{Command: command, Answer: answer})
	}
	return nil
}

// query runs command and requires an answer to it
func (d *Device) query(command string) (string, error) {
	answer, err := d.Exchange(command)
	if err != nil {
		return "", err
	}
	if !cola.IsAnswerTo(answer, command) {
		return "", d.fail(&UnexpectedAnswerError{Command: command, Answer: answer})
	}
	return answer, nil
}

// unexpected wraps an answer parser error
func (d *Device) unexpected(command, answer string, err error) error {
	return d.fail(&UnexpectedAnswerError{Command: command, Answer: answer, Err: err})
}

// FirmwareVersion reads the firmware version string
func (d *Device) FirmwareVersion() (string, error) {
	cmd := cola.ReadVariable(cola.VarFirmwareVersion)
	answer, err := d.query(cmd)
	if err != nil {
		return "", err
	}
	return cola.LastToken(answer), nil
}

// SetAccessMode logs in at a user level, e.g.
// SetAccessMode(cola.UserLevelAuthorizedClient, cola.PasswordAuthorizedClient)
func (d *Device) SetAccessMode(level, password string) error {
	return d.expect(cola.SetAccessMode(level, password), "sAN SetAccessMode 1")
}

// ScanConfig reads scan frequency, resolution and angular range
func (d *Device) ScanConfig() (*cola.ScanConfig, error) {
	cmd := cola.ReadVariable(cola.VarScanConfig)
	answer, err := d.Exchange(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := cola.ParseScanConfig(answer)
	if err != nil {
		return nil, d.unexpected(cmd, answer, err)
	}
	return cfg, nil
}

// StartMeasurement starts the laser and, unless in standby, the motor
func (d *Device) StartMeasurement() error {
	return d.expect(cola.InvokeMethod(cola.MethodStartMeasurement), "sAN LMCstartmeas 0")
}

// StopMeasurement shuts off the laser and stops the motor
func (d *Device) StopMeasurement() error {
	return d.expect(cola.InvokeMethod(cola.MethodStopMeasurement), "sAN LMCstopmeas 0")
}

// LoadFactoryDefaults restores the factory parameters
func (d *Device) LoadFactoryDefaults() error {
	return d.expect(cola.InvokeMethod(cola.MethodLoadFactoryDefault), "sAN mSCloadfacdef")
}

// LoadApplicationDefaults restores the application parameters
func (d *Device) LoadApplicationDefaults() error {
	_, err := d.query(cola.InvokeMethod(cola.MethodLoadAppDefault))
	return err
}

// CheckPassword reports whether password is valid for level
func (d *Device) CheckPassword(level, password string) (bool, error) {
	cmd := cola.CheckPassword(level, password)
	answer, err := d.Exchange(cmd)
	if err != nil {
		return false, err
	}
	ok, err := cola.ParseFlag(answer, cola.MethodCheckPassword)
	if err != nil {
		return false, d.unexpected(cmd, answer, err)
	}
	return ok, nil
}

// Reboot restarts the device. The connection is lost afterwards.
func (d *Device) Reboot() error {
	return d.expect(cola.InvokeMethod(cola.MethodReboot), "sAN mSCreboot")
}

// WriteAll saves the parameters permanently
func (d *Device) WriteAll() (bool, error) {
	cmd := cola.InvokeMethod(cola.MethodWriteAll)
	answer, err := d.Exchange(cmd)
	if err != nil {
		return false, err
	}
	ok, err := cola.ParseFlag(answer, cola.MethodWriteAll)
	if err != nil {
		return false, d.unexpected(cmd, answer, err)
	}
	return ok, nil
}

// Run leaves configuration mode
func (d *Device) Run() error {
	return d.expect(cola.InvokeMethod(cola.MethodRun), "sAN Run 1")
}

// OutputRange reads the angular range of the scan output
func (d *Device) OutputRange() (*cola.OutputRange, error) {
	cmd := cola.ReadVariable(cola.VarOutputRange)
	answer, err := d.Exchange(cmd)
	if err != nil {
		return nil, err
	}
	r, err := cola.ParseOutputRange(answer)
	if err != nil {
		return nil, d.unexpected(cmd, answer, err)
	}
	return r, nil
}

// ParticleFilter enables or disables the particle filter with a threshold
// in mm, e.g. "sWN LFPparticle 1 +500"
func (d *Device) ParticleFilter(enabled bool, threshold int) error {
	return d.expect(
		cola.WriteVariable(cola.VarParticleFilter, flag(enabled), signed(threshold)),
		"sWA "+cola.VarParticleFilter,
	)
}

// MeanFilter enables or disables averaging over scans
func (d *Device) MeanFilter(enabled bool, scans int) error {
	return d.expect(cola.MeanFilter(flag(enabled), signed(scans)), "sWA "+cola.VarMeanFilter)
}

// OutputState reads the raw state of the digital outputs
func (d *Device) OutputState() (string, error) {
	answer, err := d.query(cola.ReadVariable(cola.VarOutputState))
	if err != nil {
		return "", err
	}
	return strings.Join(cola.Tokens(answer)[2:], " "), nil
}

// SetOutput sets digital output number to on or off
func (d *Device) SetOutput(output int, on bool) error {
	return d.expect(
		cola.InvokeMethod(cola.MethodSetOutput, strconv.Itoa(output), flag(on)),
		"sAN "+cola.MethodSetOutput+" 1",
	)
}

// DebounceTime sets the input debounce time in ms
func (d *Device) DebounceTime(ms int) error {
	return d.expect(cola.WriteVariable(cola.VarDebounceTime, signed(ms)), "sWA "+cola.VarDebounceTime)
}

// DeviceIdent reads the device name and firmware identification
func (d *Device) DeviceIdent() (string, error) {
	cmd := cola.ReadVariable(cola.VarDeviceIdent)
	answer, err := d.Exchange(cmd)
	if err != nil {
		return "", err
	}
	ident, err := cola.ParseDeviceIdent(answer)
	if err != nil {
		return "", d.unexpected(cmd, answer, err)
	}
	return ident, nil
}

// DeviceState reads whether the device is busy, ready, in error or standby
func (d *Device) DeviceState() (cola.DeviceState, error) {
	cmd := cola.ReadVariable(cola.VarDeviceState)
	answer, err := d.Exchange(cmd)
	if err != nil {
		return 0, err
	}
	state, err := cola.ParseDeviceState(answer)
	if err != nil {
		return 0, d.unexpected(cmd, answer, err)
	}
	return state, nil
}

func (d *Device) readString(name string) (string, error) {
	cmd := cola.ReadVariable(name)
	answer, err := d.Exchange(cmd)
	if err != nil {
		return "", err
	}
	s, err := cola.ParseString(answer, name)
	if err != nil {
		return "", d.unexpected(cmd, answer, err)
	}
	return s, nil
}

func (d *Device) readCounter(name string) (uint64, error) {
	cmd := cola.ReadVariable(name)
	answer, err := d.Exchange(cmd)
	if err != nil {
		return 0, err
	}
	n, err := cola.ParseCounter(answer, name)
	if err != nil {
		return 0, d.unexpected(cmd, answer, err)
	}
	return n, nil
}

// OrderNumber reads the SICK part number
func (d *Device) OrderNumber() (string, error) {
	return d.readString(cola.VarOrderNumber)
}

// DeviceType reads the type string, e.g. TIM561-2050101
func (d *Device) DeviceType() (string, error) {
	return d.readString(cola.VarDeviceType)
}

// LocationName reads the user-assigned device name
func (d *Device) LocationName() (string, error) {
	return d.readString(cola.VarLocationName)
}

// OperatingHours reads the ODoprh counter as reported by the device
func (d *Device) OperatingHours() (uint64, error) {
	return d.readCounter(cola.VarOperatingHours)
}

// PowerOnCounter reads how often the device was powered on
func (d *Device) PowerOnCounter() (uint64, error) {
	return d.readCounter(cola.VarPowerOnCounter)
}

// SetLocationName writes the device name. Requires authorized client access.
func (d *Device) SetLocationName(name string) error {
	return d.expect(cola.SetLocationName(name), "sWA "+cola.VarLocationName)
}

// ResetOutputCounter resets the output counters
func (d *Device) ResetOutputCounter() error {
	return d.expect(cola.InvokeMethod(cola.MethodResetOutputCounter), "sAN LIDrstoutpcnt 0")
}

// ScanRaw reads one LMDscandata answer without decoding it
func (d *Device) ScanRaw() (string, error) {
	return d.query(cola.ReadVariable(cola.VarScanData))
}

// Scan reads and decodes one LMDscandata answer
func (d *Device) Scan() (*cola.ScanRecord, error) {
	payload, err := d.ScanRaw()
	if err != nil {
		return nil, err
	}
	r, err := cola.ParseScan(payload)
	if err != nil {
		return nil, d.fail(err)
	}
	d.stats.RecordScan()
	d.cfg.Metrics.scan()
	return r, nil
}

// Info aggregates the identification variables of a device
type Info struct {
	LocationName string           `json:"location_name"`
	DeviceType   string           `json:"device_type"`
	DeviceIdent  string           `json:"device_ident"`
	State        cola.DeviceState `json:"state"`
}

// String formats the info block
func (i *Info) String() string {
	return fmt.Sprintf("Device Location Name = %s\nDevice Type = %s\nDevice Identification Info = %s\nDevice State = %s\n",
		i.LocationName, i.DeviceType, i.DeviceIdent, cola.FormatDeviceState(i.State))
}

// Info reads location name, type, identification and state
func (d *Device) Info() (*Info, error) {
	var (
		info Info
		err  error
	)
	if info.LocationName, err = d.LocationName(); err != nil {
		return nil, err
	}
	if info.DeviceType, err = d.DeviceType(); err != nil {
		return nil, err
	}
	if info.DeviceIdent, err = d.DeviceIdent(); err != nil {
		return nil, err
	}
	if info.State, err = d.DeviceState(); err != nil {
		return nil, err
	}
	return &info, nil
}

func flag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// signed formats a CoLa-A signed decimal such as +500
func signed(n int) string {
	if n < 0 {
		return strconv.Itoa(n)
	}
	return "+" + strconv.Itoa(n)
}
