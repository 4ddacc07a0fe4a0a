// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnexpectedAnswer is returned by answer parsers when a payload does not
// have the shape the command documents
var ErrUnexpectedAnswer = errors.New("unexpected answer")

// ScanConfig is the LMPscancfg answer
type ScanConfig struct {
	ScanFrequency     float64 `json:"scan_frequency"` // Hz
	Sectors           uint64  `json:"sectors"`
	AngularResolution float64 `json:"angular_resolution"` // degrees
	StartAngle        float64 `json:"start_angle"`        // degrees
	StopAngle         float64 `json:"stop_angle"`         // degrees
}

// OutputRange is the LMPoutputRange answer
type OutputRange struct {
	Sectors           uint64  `json:"sectors"`
	AngularResolution float64 `json:"angular_resolution"`
	StartAngle        float64 `json:"start_angle"`
	StopAngle         float64 `json:"stop_angle"`
}

func unexpected(payload, format string, args ...any) error {
	return fmt.Errorf("%w %q: %s", ErrUnexpectedAnswer, payload, fmt.Sprintf(format, args...))
}

// answerTokens checks that payload answers the variable or method name and
// has at least n tokens
func answerTokens(payload, prefix, name string, n int) ([]string, error) {
	tokens := Tokens(payload)
	if len(tokens) < 2 || tokens[0] != prefix || tokens[1] != name {
		return nil, unexpected(payload, "not a %s %s answer", prefix, name)
	}
	if len(tokens) < n {
		return nil, unexpected(payload, "want %d tokens, got %d", n, len(tokens))
	}
	return tokens, nil
}

func parseHex(payload, tok string) (uint64, error) {
	v, err := strconv.ParseUint(tok, 16, 32)
	if err != nil {
		return 0, unexpected(payload, "%q is not a 32-bit hex value", tok)
	}
	return v, nil
}

// parseAngle reads a two's complement 32-bit hex angle in 1/10000 degree
func parseAngle(payload, tok string) (float64, error) {
	v, err := parseHex(payload, tok)
	if err != nil {
		return 0, err
	}
	return float64(int32(uint32(v))) / angleDivisor, nil
}

// ParseScanConfig decodes "sRA LMPscancfg <freq> <sectors> <res> <start> <stop>"
func ParseScanConfig(payload string) (*ScanConfig, error) {
	tokens, err := answerTokens(payload, PrefixReadAnswer, VarScanConfig, 7)
	if err != nil {
		return nil, err
	}
	if len(tokens) != 7 {
		return nil, unexpected(payload, "want 7 tokens, got %d", len(tokens))
	}

	freq, err := parseHex(payload, tokens[2])
	if err != nil {
		return nil, err
	}
	sectors, err := parseHex(payload, tokens[3])
	if err != nil {
		return nil, err
	}
	res, err := parseHex(payload, tokens[4])
	if err != nil {
		return nil, err
	}
	start, err := parseAngle(payload, tokens[5])
	if err != nil {
		return nil, err
	}
	stop, err := parseAngle(payload, tokens[6])
	if err != nil {
		return nil, err
	}

	return &ScanConfig{
		ScanFrequency:     float64(freq) / frequencyDivisor,
		Sectors:           sectors,
		AngularResolution: float64(res) / angleDivisor,
		StartAngle:        start,
		StopAngle:         stop,
	}, nil
}

// ParseOutputRange decodes "sRA LMPoutputRange <sectors> <res> <start> <stop>",
// e.g. "sRA LMPoutputRange 1 1388 FFF92230 225510"
func ParseOutputRange(payload string) (*OutputRange, error) {
	tokens, err := answerTokens(payload, PrefixReadAnswer, VarOutputRange, 6)
	if err != nil {
		return nil, err
	}

	sectors, err := parseHex(payload, tokens[2])
	if err != nil {
		return nil, err
	}
	res, err := parseHex(payload, tokens[3])
	if err != nil {
		return nil, err
	}
	start, err := parseAngle(payload, tokens[4])
	if err != nil {
		return nil, err
	}
	stop, err := parseAngle(payload, tokens[5])
	if err != nil {
		return nil, err
	}

	return &OutputRange{
		Sectors:           sectors,
		AngularResolution: float64(res) / angleDivisor,
		StartAngle:        start,
		StopAngle:         stop,
	}, nil
}

// ParseDeviceState decodes the last character of an SCdevicestate answer
func ParseDeviceState(payload string) (DeviceState, error) {
	tokens, err := answerTokens(payload, PrefixReadAnswer, VarDeviceState, 3)
	if err != nil {
		return 0, err
	}
	last := tokens[len(tokens)-1]
	switch s := DeviceState(last[len(last)-1] - '0'); s {
	case DeviceStateBusy, DeviceStateReady, DeviceStateError, DeviceStateStandby:
		return s, nil
	}
	return 0, unexpected(payload, "unknown device state %q", last)
}

// ParseDeviceIdent joins tokens 3 to 5 of a DeviceIdent answer, e.g.
// "sRA DeviceIdent 10 LMS10x_FieldEval 10 V1.36-21.10.2010" gives
// "LMS10x_FieldEval 10 V1.36-21.10.2010"
func ParseDeviceIdent(payload string) (string, error) {
	tokens, err := answerTokens(payload, PrefixReadAnswer, VarDeviceIdent, 6)
	if err != nil {
		return "", err
	}
	return strings.Join(tokens[3:6], " "), nil
}

// ParseString returns the last token of a read answer, which for string
// variables such as LocationName or DItype is the value itself
func ParseString(payload, name string) (string, error) {
	tokens, err := answerTokens(payload, PrefixReadAnswer, name, 3)
	if err != nil {
		return "", err
	}
	return tokens[len(tokens)-1], nil
}

// ParseCounter returns the hex value of a counter answer such as ODpwrc
func ParseCounter(payload, name string) (uint64, error) {
	tokens, err := answerTokens(payload, PrefixReadAnswer, name, 3)
	if err != nil {
		return 0, err
	}
	last := tokens[len(tokens)-1]
	v, err := strconv.ParseUint(last, 16, 64)
	if err != nil {
		return 0, unexpected(payload, "%q is not hexadecimal", last)
	}
	return v, nil
}

// ParseFlag returns the trailing 0/1 of a method answer such as
// "sAN CheckPassword 1"
func ParseFlag(payload, name string) (bool, error) {
	tokens, err := answerTokens(payload, PrefixMethodAnswer, name, 3)
	if err != nil {
		return false, err
	}
	switch tokens[len(tokens)-1] {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, unexpected(payload, "want 0 or 1")
}
