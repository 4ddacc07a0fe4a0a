// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import (
	"fmt"
	"strconv"
	"strings"
)

// ScanRecord is a decoded LMDscandata answer
type ScanRecord struct {
	CommandType          string  `cbor:"command_type" json:"command_type"`
	Command              string  `cbor:"command" json:"command"`
	Version              uint64  `cbor:"version" json:"version"`
	DeviceNumber         uint64  `cbor:"device_number" json:"device_number"`
	SerialNumber         uint64  `cbor:"serial_number" json:"serial_number"`
	DeviceStatus         uint64  `cbor:"device_status" json:"device_status"`
	TelegramCounter      uint64  `cbor:"telegram_counter" json:"telegram_counter"`
	ScanCounter          uint64  `cbor:"scan_counter" json:"scan_counter"`
	Uptime               uint64  `cbor:"uptime" json:"uptime"`                       // µs since power-on
	TransmissionTime     uint64  `cbor:"transmission_time" json:"transmission_time"` // µs since power-on
	InputStatus          uint64  `cbor:"input_status" json:"input_status"`
	OutputStatus         uint64  `cbor:"output_status" json:"output_status"`
	LayerAngle           uint64  `cbor:"layer_angle" json:"layer_angle"`
	ScanFrequency        float64 `cbor:"scan_frequency" json:"scan_frequency"` // Hz
	MeasurementFrequency float64 `cbor:"measurement_frequency" json:"measurement_frequency"`
	EncoderCount         uint64  `cbor:"encoder_count" json:"encoder_count"`
	Channels16Bit        uint64  `cbor:"channels_16bit" json:"channels_16bit"`
	TelegramLength       int     `cbor:"telegram_length" json:"telegram_length"` // Token count

	// Nil when the telegram carries no such channel
	Distance *DistanceChannel `cbor:"distance,omitempty" json:"distance,omitempty"`
	RSSI     *RSSIChannel     `cbor:"rssi,omitempty" json:"rssi,omitempty"`
}

// ChannelHeader holds the parameters shared by every 16-bit channel block
type ChannelHeader struct {
	Label             string `cbor:"label" json:"label"`
	ScaleFactor       uint64 `cbor:"scale_factor" json:"scale_factor"`
	ScaleFactorOffset uint64 `cbor:"scale_factor_offset" json:"scale_factor_offset"`

	// StartAngle in degrees. The device sends a 32-bit value which is always
	// read as negative (2^32 is subtracted); a non-negative start angle
	// decodes to a wrong value.
	StartAngle float64 `cbor:"start_angle" json:"start_angle"`

	AngularResolution float64 `cbor:"angular_resolution" json:"angular_resolution"` // degrees
	SampleCount       int     `cbor:"sample_count" json:"sample_count"`

	// Token indices of the channel tag and one past the last sample
	Anchor int `cbor:"anchor" json:"anchor"`
	End    int `cbor:"end" json:"end"`
}

// DistanceChannel is a DIST block. Distances are in metres.
type DistanceChannel struct {
	ChannelHeader
	Distances []float64 `cbor:"distances" json:"distances"`
	Raw       []string  `cbor:"raw" json:"raw"` // Hex millimetre tokens as received
}

// RSSIChannel is an RSSI block. Values are the raw hex tokens; no physical
// unit is applied.
type RSSIChannel struct {
	ChannelHeader
	Values []string `cbor:"values" json:"values"`
}

// Angle returns the angle in degrees of sample i
func (h *ChannelHeader) Angle(i int) float64 {
	return h.StartAngle + float64(i)*h.AngularResolution
}

// Intensities parses the raw RSSI tokens as hex integers
func (c *RSSIChannel) Intensities() ([]uint64, error) {
	out := make([]uint64, len(c.Values))
	for i, v := range c.Values {
		n, err := strconv.ParseUint(v, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("rssi sample %d %q: %w", i, v, err)
		}
		out[i] = n
	}
	return out, nil
}

// Range returns the nearest, farthest and mean distance. ok is false when
// the channel has no samples.
func (c *DistanceChannel) Range() (lo, hi, mean float64, ok bool) {
	if len(c.Distances) == 0 {
		return 0, 0, 0, false
	}
	lo, hi, mean = summarize(c.Distances)
	return lo, hi, mean, true
}

// ParseScan splits an LMDscandata payload into tokens and decodes it
func ParseScan(payload string) (*ScanRecord, error) {
	return DecodeScan(Tokens(payload))
}

// DecodeScan decodes the tokens of an LMDscandata answer.
//
// The header is read at fixed token positions. The distance and RSSI blocks
// are located by the first token containing "DIST" and "RSSI"; a telegram
// with neither is returned header-only with both channels nil.
//
// Known assumptions carried over from the device convention:
//   - start angles are always read as negative (see ChannelHeader.StartAngle)
//   - the RSSI start angle is read from the distance block, so an RSSI block
//     without a distance block fails with a ParseError on rssi_start_angle
//
// Decoding is all-or-nothing: on error the record is nil.
func DecodeScan(tokens []string) (*ScanRecord, error) {
	if len(tokens) < 2 {
		name := "command_type"
		if len(tokens) == 1 {
			name = "command"
		}
		return nil, &ParseError{Field: name, Index: len(tokens), Err: ErrMissingToken}
	}

	r := &ScanRecord{
		CommandType:    tokens[0],
		Command:        tokens[1],
		TelegramLength: len(tokens),
	}

	if err := r.decodeHeader(tokens); err != nil {
		return nil, err
	}

	distAnchor := findAnchor(tokens, TagDistance)
	rssiAnchor := findAnchor(tokens, TagRSSI)

	if distAnchor >= 0 {
		ch, err := decodeDistance(tokens, distAnchor)
		if err != nil {
			return nil, err
		}
		r.Distance = ch
	}

	if rssiAnchor >= 0 {
		ch, err := decodeRSSI(tokens, rssiAnchor, distAnchor)
		if err != nil {
			return nil, err
		}
		r.RSSI = ch
	}

	return r, nil
}

// decodeHeader fills the fixed header fields from headerLayout
func (r *ScanRecord) decodeHeader(tokens []string) error {
	for _, h := range headerLayout {
		if err := h.decode(tokens, r); err != nil {
			return err
		}
	}
	return nil
}

// findAnchor returns the index of the first token containing tag, or -1
func findAnchor(tokens []string, tag string) int {
	for i, tok := range tokens {
		if strings.Contains(tok, tag) {
			return i
		}
	}
	return -1
}

// decodeChannelHeader reads the block parameters following an anchor.
// The start angle is read relative to angleAnchor.
func decodeChannelHeader(tokens []string, anchor, angleAnchor int, prefix string) (ChannelHeader, error) {
	h := ChannelHeader{Label: tokens[anchor], Anchor: anchor}

	var err error
	if h.ScaleFactor, err = fieldScaleFactor.at(anchor, prefix).integer(tokens); err != nil {
		return h, err
	}
	if h.ScaleFactorOffset, err = fieldScaleFactorOffset.at(anchor, prefix).integer(tokens); err != nil {
		return h, err
	}
	if angleAnchor < 0 {
		return h, &ParseError{Field: prefix + "_" + fieldStartAngle.name, Index: -1, Err: ErrNoDistance}
	}
	if h.StartAngle, err = fieldStartAngle.at(angleAnchor, prefix).signedAngle(tokens); err != nil {
		return h, err
	}
	if h.AngularResolution, err = fieldAngularResolution.at(anchor, prefix).scaled(tokens); err != nil {
		return h, err
	}

	count, err := fieldSampleCount.at(anchor, prefix).integer(tokens)
	if err != nil {
		return h, err
	}

	first := anchor + channelSamplesOffset
	if count > uint64(len(tokens)) || first+int(count) > len(tokens) {
		return h, &ParseError{
			Field: prefix + "_samples",
			Index: first,
			Err:   fmt.Errorf("%w: %d samples declared, %d tokens left", ErrChannelEnd, count, max(len(tokens)-first, 0)),
		}
	}

	h.SampleCount = int(count)
	h.End = first + h.SampleCount
	return h, nil
}

// decodeDistance decodes a DIST block, converting hex millimetres to metres
func decodeDistance(tokens []string, anchor int) (*DistanceChannel, error) {
	h, err := decodeChannelHeader(tokens, anchor, anchor, "dist")
	if err != nil {
		return nil, err
	}

	raw := tokens[anchor+channelSamplesOffset : h.End]
	distances := make([]float64, len(raw))
	for i, tok := range raw {
		mm, err := strconv.ParseUint(tok, 16, 64)
		if err != nil {
			return nil, &ParseError{
				Field: "dist_samples",
				Index: anchor + channelSamplesOffset + i,
				Token: tok,
				Err:   fmt.Errorf("not a base-16 integer"),
			}
		}
		distances[i] = float64(mm) / millimetresPerMetre
	}

	return &DistanceChannel{
		ChannelHeader: h,
		Distances:     distances,
		Raw:           append([]string(nil), raw...),
	}, nil
}

// decodeRSSI decodes an RSSI block. Its start angle comes from the distance
// block at distAnchor.
func decodeRSSI(tokens []string, anchor, distAnchor int) (*RSSIChannel, error) {
	h, err := decodeChannelHeader(tokens, anchor, distAnchor, "rssi")
	if err != nil {
		return nil, err
	}

	return &RSSIChannel{
		ChannelHeader: h,
		Values:        append([]string(nil), tokens[anchor+channelSamplesOffset:h.End]...),
	}, nil
}
