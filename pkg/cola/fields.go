// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import (
	"fmt"
	"strconv"
)

// field describes one numeric token of an LMDscandata answer.
// For header fields index is absolute; for channel fields it is relative to
// the channel anchor.
type field struct {
	name    string
	index   int
	base    int
	divisor float64 // 0 means the raw integer is used
}

// Header layout. Token 5 (first device-status byte), 11 and 13 (high bytes of
// the input/output status words) are not decoded.
var (
	fieldVersion          = field{"version", 2, 16, 0}
	fieldDeviceNumber     = field{"device_number", 3, 16, 0}
	fieldSerialNumber     = field{"serial_number", 4, 16, 0}
	fieldDeviceStatus     = field{"device_status", 6, 8, 0}
	fieldTelegramCounter  = field{"telegram_counter", 7, 16, 0}
	fieldScanCounter      = field{"scan_counter", 8, 16, 0}
	fieldUptime           = field{"uptime", 9, 16, 0}
	fieldTransmissionTime = field{"transmission_time", 10, 16, 0}
	fieldInputStatus      = field{"input_status", 12, 16, 0}
	fieldOutputStatus     = field{"output_status", 14, 8, 0}
	fieldLayerAngle       = field{"layer_angle", 15, 16, 0}
	fieldScanFrequency    = field{"scan_frequency", 16, 16, frequencyDivisor}
	fieldMeasFrequency    = field{"measurement_frequency", 17, 16, frequencyDivisor}
	fieldEncoderCount     = field{"encoder_count", 18, 16, 0}
	fieldChannels16Bit    = field{"channels_16bit", 19, 16, 0}
)

// headerField binds a header field to its ScanRecord member. Exactly one of
// setInt and setScaled is set; setScaled receives the divided value.
type headerField struct {
	field
	setInt    func(r *ScanRecord, v uint64)
	setScaled func(r *ScanRecord, v float64)
}

// headerLayout lists every numeric header field in token order
var headerLayout = []headerField{
	{field: fieldVersion, setInt: func(r *ScanRecord, v uint64) { r.Version = v }},
	{field: fieldDeviceNumber, setInt: func(r *ScanRecord, v uint64) { r.DeviceNumber = v }},
	{field: fieldSerialNumber, setInt: func(r *ScanRecord, v uint64) { r.SerialNumber = v }},
	{field: fieldDeviceStatus, setInt: func(r *ScanRecord, v uint64) { r.DeviceStatus = v }},
	{field: fieldTelegramCounter, setInt: func(r *ScanRecord, v uint64) { r.TelegramCounter = v }},
	{field: fieldScanCounter, setInt: func(r *ScanRecord, v uint64) { r.ScanCounter = v }},
	{field: fieldUptime, setInt: func(r *ScanRecord, v uint64) { r.Uptime = v }},
	{field: fieldTransmissionTime, setInt: func(r *ScanRecord, v uint64) { r.TransmissionTime = v }},
	{field: fieldInputStatus, setInt: func(r *ScanRecord, v uint64) { r.InputStatus = v }},
	{field: fieldOutputStatus, setInt: func(r *ScanRecord, v uint64) { r.OutputStatus = v }},
	{field: fieldLayerAngle, setInt: func(r *ScanRecord, v uint64) { r.LayerAngle = v }},
	{field: fieldScanFrequency, setScaled: func(r *ScanRecord, v float64) { r.ScanFrequency = v }},
	{field: fieldMeasFrequency, setScaled: func(r *ScanRecord, v float64) { r.MeasurementFrequency = v }},
	{field: fieldEncoderCount, setInt: func(r *ScanRecord, v uint64) { r.EncoderCount = v }},
	{field: fieldChannels16Bit, setInt: func(r *ScanRecord, v uint64) { r.Channels16Bit = v }},
}

// decode reads the field from tokens and stores it in r
func (h headerField) decode(tokens []string, r *ScanRecord) error {
	if h.setScaled != nil {
		v, err := h.scaled(tokens)
		if err != nil {
			return err
		}
		h.setScaled(r, v)
		return nil
	}
	v, err := h.integer(tokens)
	if err != nil {
		return err
	}
	h.setInt(r, v)
	return nil
}

// Channel layout, relative to the anchor token. The label is the anchor.
var (
	fieldScaleFactor       = field{"scale_factor", 1, 16, 0}
	fieldScaleFactorOffset = field{"scale_factor_offset", 2, 16, 0}
	fieldStartAngle        = field{"start_angle", 3, 16, angleDivisor}
	fieldAngularResolution = field{"angular_resolution", 4, 16, angleDivisor}
	fieldSampleCount       = field{"sample_count", 5, 16, 0}
)

// channelSamplesOffset is the first sample token, relative to the anchor
const channelSamplesOffset = 6

// at returns the field shifted by an anchor and renamed with a channel prefix
func (f field) at(anchor int, prefix string) field {
	return field{
		name:    prefix + "_" + f.name,
		index:   anchor + f.index,
		base:    f.base,
		divisor: f.divisor,
	}
}

// token returns the raw token for the field
func (f field) token(tokens []string) (string, error) {
	if f.index < 0 || f.index >= len(tokens) {
		return "", &ParseError{Field: f.name, Index: f.index, Err: ErrMissingToken}
	}
	return tokens[f.index], nil
}

// integer extracts the field as an unsigned integer in its base
func (f field) integer(tokens []string) (uint64, error) {
	tok, err := f.token(tokens)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(tok, f.base, 64)
	if err != nil {
		return 0, &ParseError{
			Field: f.name,
			Index: f.index,
			Token: tok,
			Err:   fmt.Errorf("not a base-%d integer", f.base),
		}
	}
	return v, nil
}

// scaled extracts the field and applies its divisor
func (f field) scaled(tokens []string) (float64, error) {
	v, err := f.integer(tokens)
	if err != nil {
		return 0, err
	}
	if f.divisor == 0 {
		return float64(v), nil
	}
	return float64(v) / f.divisor, nil
}

// signedAngle extracts a 32-bit field and reads it as a negative angle by
// subtracting 2^32 before scaling. Positive angles are not detected.
func (f field) signedAngle(tokens []string) (float64, error) {
	v, err := f.integer(tokens)
	if err != nil {
		return 0, err
	}
	if v >= startAngleOffset {
		return 0, &ParseError{
			Field: f.name,
			Index: f.index,
			Token: tokens[f.index],
			Err:   fmt.Errorf("value 0x%X exceeds 32 bits", v),
		}
	}
	return float64(int64(v)-startAngleOffset) / f.divisor, nil
}
