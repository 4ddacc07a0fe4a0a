// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// scanHeader is a 20-token LMDscandata header with distinct field values
var scanHeader = []string{
	"sRA", "LMDscandata", // command type, command
	"1", "1", "10F2C3B", // version, device number, serial number
	"0", "17", // device status (octal)
	"2C3", "2C4", // telegram counter, scan counter
	"5A8E1F2", "5A8E4A0", // uptime, transmission time
	"0", "1F", // input status
	"0", "11", // output status (octal)
	"0",          // layer angle
	"9C4", "6A4", // scan frequency, measurement frequency
	"0", // encoder amount
	"1", // 16-bit channels
}

// distBlock is a distance block with three samples: 0.1, 0.2 and 0.3 m
var distBlock = []string{"DIST1", "1", "0", "FFF92230", "D05", "0003", "0064", "00C8", "012C"}

// rssiBlock carries its own start angle, which the decoder ignores
var rssiBlock = []string{"RSSI1", "1", "0", "FFFB6C20", "D05", "3", "A", "B", "C"}

func tokensOf(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ============================================================
// Framer Tests
// ============================================================

func TestFrame(t *testing.T) {
	got := Frame("sRN SCdevicestate")
	want := append([]byte{0x02}, []byte("sRN SCdevicestate")...)
	want = append(want, 0x03, 0x00)
	if !bytes.Equal(got, want) {
		t.Errorf("Frame() = % X, want % X", got, want)
	}
}

func TestFrame_Empty(t *testing.T) {
	got := Frame("")
	if !bytes.Equal(got, []byte{STX, ETX, Pad}) {
		t.Errorf("Frame(\"\") = % X", got)
	}
}

func TestFrameUnframe_RoundTrip(t *testing.T) {
	commands := []string{
		"",
		"sRN LMDscandata",
		"sMN SetAccessMode 03 F4724744",
		"sWN LocationName +13 OutdoorDevice",
		"sRA DItype E TIM561-2050101",
		"ünïcödé µs °",
	}

	for _, c := range commands {
		t.Run(c, func(t *testing.T) {
			framed := Frame(c)
			// Responses carry no pad byte
			payload, err := Unframe(framed[:len(framed)-1])
			if err != nil {
				t.Fatalf("Unframe error: %v", err)
			}
			if payload != c {
				t.Errorf("round trip = %q, want %q", payload, c)
			}
		})
	}
}

func TestUnframe_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		telegram []byte
	}{
		{"empty", []byte{}},
		{"nil", nil},
		{"single STX", []byte{STX}},
		{"single ETX", []byte{ETX}},
		{"missing STX", []byte("sRA DItype\x03")},
		{"missing ETX", []byte("\x02sRA DItype")},
		{"trailing pad", []byte("\x02sRA DItype\x03\x00")},
		{"swapped", []byte("\x03sRA DItype\x02")},
		{"plain text", []byte("hello")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unframe(tt.telegram)
			var fe *FramingError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FramingError, got %v", err)
			}
			if fe.Length != len(tt.telegram) {
				t.Errorf("FramingError.Length = %d, want %d", fe.Length, len(tt.telegram))
			}
		})
	}
}

func TestUnframe_MinimalTelegram(t *testing.T) {
	payload, err := Unframe([]byte{STX, ETX})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != "" {
		t.Errorf("payload = %q, want empty", payload)
	}
}

func TestUnframe_InvalidUTF8(t *testing.T) {
	telegram := []byte{STX, 's', 'R', 'A', ' ', 0xFF, 0xFE, ETX}
	_, err := Unframe(telegram)
	var ee *EncodingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
	if ee.Offset != 4 {
		t.Errorf("EncodingError.Offset = %d, want 4", ee.Offset)
	}
}

// ============================================================
// Classifier Tests
// ============================================================

func TestClassify_PassThrough(t *testing.T) {
	payloads := []string{
		"sRA SCdevicestate 1",
		"sAN SetAccessMode 1",
		"sWA LocationName",
		"",
		"sF A 5",
		" sFA 5",
	}
	for _, p := range payloads {
		got, err := Classify(p)
		if err != nil {
			t.Errorf("Classify(%q) error: %v", p, err)
		}
		if got != p {
			t.Errorf("Classify(%q) = %q, want unchanged", p, got)
		}
	}
}

func TestClassify_DeviceErrors(t *testing.T) {
	tests := []struct {
		payload string
		code    ErrorCode
		name    string
	}{
		{"sFA 0", SopasOk, "Sopas_Ok"},
		{"sFA 1", SopasMethodInAccessDenied, "Sopas_Error_METHODIN_ACCESSDENIED"},
		{"sFA 4", SopasLocalConditionFailed, "Sopas_Error_LOCALCONDITIONFAILED"},
		{"sFA 5", SopasInvalidData, "Sopas_Error_INVALID_DATA"},
		{"sFA D", SopasMethodInServerBusy, "Sopas_Error_METHODIN_SERVER_BUSY"},
		{"sFA F", SopasEventRegUnknownIndex, "Sopas_Error_EVENTREG_UNKNOWNINDEX"},
		{"sFA f", SopasEventRegUnknownIndex, "Sopas_Error_EVENTREG_UNKNOWNINDEX"},
		{"sFA 1A", SopasComplexArraysNotSupported, "Sopas_Error_ComplexArraysNotSupported"},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := Classify(tt.payload)
			if got != "" {
				t.Errorf("payload should not pass through, got %q", got)
			}
			var de *DeviceError
			if !errors.As(err, &de) {
				t.Fatalf("expected DeviceError, got %v", err)
			}
			if de.Code != tt.code {
				t.Errorf("Code = %d, want %d", de.Code, tt.code)
			}
			if de.Name != tt.name {
				t.Errorf("Name = %q, want %q", de.Name, tt.name)
			}
			if de.Description != tt.code.Description() || de.Description == "" {
				t.Errorf("Description = %q", de.Description)
			}
			if de.Payload != tt.payload {
				t.Errorf("Payload = %q, want %q", de.Payload, tt.payload)
			}
		})
	}
}

func TestClassify_LocalConditionFailedDescription(t *testing.T) {
	_, err := Classify("sFA 4")
	want := "Local condition violated, e.g. giving a value that exceeds the minimum or maximum allowed value for this variable"
	var de *DeviceError
	if !errors.As(err, &de) || de.Description != want {
		t.Errorf("unexpected error %v", err)
	}
	if !IsDeviceError(err) {
		t.Error("IsDeviceError should be true")
	}
	if !strings.HasPrefix(err.Error(), "Sopas_Error_LOCALCONDITIONFAILED") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestClassify_ProtocolViolation(t *testing.T) {
	payloads := []string{
		"sFA",
		"sFA 1B",
		"sFA FF",
		"sFA 12345678901234567890",
		"sFA Z",
		"sFA -1",
	}
	for _, p := range payloads {
		t.Run(p, func(t *testing.T) {
			_, err := Classify(p)
			var pv *ProtocolViolation
			if !errors.As(err, &pv) {
				t.Fatalf("expected ProtocolViolation, got %v", err)
			}
			if IsDeviceError(err) {
				t.Error("ProtocolViolation must not be a DeviceError")
			}
		})
	}
}

func TestErrorTable(t *testing.T) {
	if ErrorCodeCount != 27 {
		t.Fatalf("ErrorCodeCount = %d, want 27", ErrorCodeCount)
	}
	seen := map[string]bool{}
	for i := 0; i < ErrorCodeCount; i++ {
		c := ErrorCode(i)
		if seen[c.String()] {
			t.Errorf("duplicate name %s", c)
		}
		seen[c.String()] = true
		if c.Description() == "" {
			t.Errorf("%s has no description", c)
		}
	}
	if ErrorCode(27).Valid() {
		t.Error("code 27 should be invalid")
	}
}

func TestErrorCode_DescriptionsAsPublished(t *testing.T) {
	tests := map[ErrorCode]string{
		SopasFlexOutOfBounds:           "An dataay was accessed over its maximum length.",
		SopasInternal:                  "Internal error in the firmware, problably a pointer to a parameter was null.",
		SopasAsyncMethodsAreSuppressed: "An asynchronous method call was made although the device was built with “AsyncMethodsSuppressed”. This is an internal error that should never happen in a released device.",
	}
	for code, want := range tests {
		if got := code.Description(); got != want {
			t.Errorf("%s description = %q, want %q", code, got, want)
		}
	}
}

// ============================================================
// Scan Decoder Tests
// ============================================================

func TestDecodeScan_HeaderOnly(t *testing.T) {
	r, err := DecodeScan(scanHeader)
	if err != nil {
		t.Fatalf("DecodeScan error: %v", err)
	}

	if r.CommandType != "sRA" || r.Command != "LMDscandata" {
		t.Errorf("command = %q %q", r.CommandType, r.Command)
	}

	checks := []struct {
		name string
		got  uint64
		want uint64
	}{
		{"Version", r.Version, 1},
		{"DeviceNumber", r.DeviceNumber, 1},
		{"SerialNumber", r.SerialNumber, 0x10F2C3B},
		{"DeviceStatus", r.DeviceStatus, 017},
		{"TelegramCounter", r.TelegramCounter, 0x2C3},
		{"ScanCounter", r.ScanCounter, 0x2C4},
		{"Uptime", r.Uptime, 0x5A8E1F2},
		{"TransmissionTime", r.TransmissionTime, 0x5A8E4A0},
		{"InputStatus", r.InputStatus, 0x1F},
		{"OutputStatus", r.OutputStatus, 011},
		{"LayerAngle", r.LayerAngle, 0},
		{"EncoderCount", r.EncoderCount, 0},
		{"Channels16Bit", r.Channels16Bit, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	if r.ScanFrequency != 25.0 {
		t.Errorf("ScanFrequency = %v, want 25", r.ScanFrequency)
	}
	if r.MeasurementFrequency != 17.0 {
		t.Errorf("MeasurementFrequency = %v, want 17", r.MeasurementFrequency)
	}
	if r.TelegramLength != 20 {
		t.Errorf("TelegramLength = %d, want 20", r.TelegramLength)
	}
	if r.Distance != nil {
		t.Errorf("Distance should be absent, got %+v", r.Distance)
	}
	if r.RSSI != nil {
		t.Errorf("RSSI should be absent, got %+v", r.RSSI)
	}
}

func TestDecodeScan_HeaderLayoutMatchesTable(t *testing.T) {
	if len(scanHeader) != headerTokens {
		t.Fatalf("test header has %d tokens, want %d", len(scanHeader), headerTokens)
	}
	r, err := DecodeScan(scanHeader)
	if err != nil {
		t.Fatalf("DecodeScan error: %v", err)
	}
	if r.DeviceStatus != 15 {
		t.Errorf("device status should be octal, got %d", r.DeviceStatus)
	}

	// Each table entry is what decodes its token
	prev := 0
	for _, h := range headerLayout {
		if (h.setInt == nil) == (h.setScaled == nil) {
			t.Errorf("field %s needs exactly one setter", h.name)
		}
		if h.index <= prev {
			t.Errorf("field %s at token %d is out of order", h.name, h.index)
		}
		prev = h.index

		_, err := DecodeScan(replaceAt(scanHeader, h.index, "G"))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("field %s: expected ParseError, got %v", h.name, err)
			continue
		}
		if pe.Field != h.name || pe.Index != h.index {
			t.Errorf("field %s: error names %s at %d", h.name, pe.Field, pe.Index)
		}
	}
}

func TestDecodeScan_DistanceChannel(t *testing.T) {
	r, err := DecodeScan(tokensOf(scanHeader, distBlock))
	if err != nil {
		t.Fatalf("DecodeScan error: %v", err)
	}

	d := r.Distance
	if d == nil {
		t.Fatal("Distance channel missing")
	}
	if d.Label != "DIST1" {
		t.Errorf("Label = %q, want DIST1", d.Label)
	}
	if d.ScaleFactor != 1 || d.ScaleFactorOffset != 0 {
		t.Errorf("scale = %d offset = %d", d.ScaleFactor, d.ScaleFactorOffset)
	}
	if d.StartAngle != -45.0 {
		t.Errorf("StartAngle = %v, want -45", d.StartAngle)
	}
	if d.AngularResolution != 0.3333 {
		t.Errorf("AngularResolution = %v, want 0.3333", d.AngularResolution)
	}
	if d.SampleCount != 3 {
		t.Errorf("SampleCount = %d, want 3", d.SampleCount)
	}
	want := []float64{0.100, 0.200, 0.300}
	if len(d.Distances) != len(want) {
		t.Fatalf("Distances = %v, want %v", d.Distances, want)
	}
	for i := range want {
		if d.Distances[i] != want[i] {
			t.Errorf("Distances[%d] = %v, want %v", i, d.Distances[i], want[i])
		}
	}
	if d.Anchor != 20 {
		t.Errorf("Anchor = %d, want 20", d.Anchor)
	}
	if d.End != d.Anchor+9 {
		t.Errorf("End = %d, want %d", d.End, d.Anchor+9)
	}
	if strings.Join(d.Raw, " ") != "0064 00C8 012C" {
		t.Errorf("Raw = %v", d.Raw)
	}
	if r.RSSI != nil {
		t.Error("RSSI should be absent")
	}
}

func TestDistanceChannel_Range(t *testing.T) {
	r, err := DecodeScan(tokensOf(scanHeader, distBlock))
	if err != nil {
		t.Fatalf("DecodeScan error: %v", err)
	}

	lo, hi, mean, ok := r.Distance.Range()
	if !ok {
		t.Fatal("Range reported no samples")
	}
	if lo != 0.1 || hi != 0.3 {
		t.Errorf("Range lo=%v hi=%v, want 0.1 and 0.3", lo, hi)
	}
	if d := mean - 0.2; d > 1e-9 || d < -1e-9 {
		t.Errorf("mean = %v, want 0.2", mean)
	}

	if _, _, _, ok := (&DistanceChannel{}).Range(); ok {
		t.Error("empty channel should report no samples")
	}
}

func TestDecodeScan_RSSIUsesDistanceStartAngle(t *testing.T) {
	r, err := DecodeScan(tokensOf(scanHeader, distBlock, rssiBlock))
	if err != nil {
		t.Fatalf("DecodeScan error: %v", err)
	}
	if r.RSSI == nil {
		t.Fatal("RSSI channel missing")
	}
	if r.RSSI.Label != "RSSI1" {
		t.Errorf("Label = %q, want RSSI1", r.RSSI.Label)
	}
	if r.RSSI.StartAngle != r.Distance.StartAngle {
		t.Errorf("RSSI StartAngle = %v, want distance start angle %v", r.RSSI.StartAngle, r.Distance.StartAngle)
	}
	if strings.Join(r.RSSI.Values, " ") != "A B C" {
		t.Errorf("Values = %v", r.RSSI.Values)
	}
	if r.RSSI.Anchor != 29 || r.RSSI.End != 38 {
		t.Errorf("Anchor/End = %d/%d, want 29/38", r.RSSI.Anchor, r.RSSI.End)
	}

	intensities, err := r.RSSI.Intensities()
	if err != nil {
		t.Fatalf("Intensities error: %v", err)
	}
	if intensities[0] != 10 || intensities[2] != 12 {
		t.Errorf("Intensities = %v", intensities)
	}
}

func TestDecodeScan_RSSIWithoutDistance(t *testing.T) {
	r, err := DecodeScan(tokensOf(scanHeader, rssiBlock))
	if r != nil {
		t.Error("record must be nil on error")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Field != "rssi_start_angle" {
		t.Errorf("Field = %q, want rssi_start_angle", pe.Field)
	}
	if !errors.Is(err, ErrNoDistance) {
		t.Error("error should wrap ErrNoDistance")
	}
}

func TestDecodeScan_InsufficientSamples(t *testing.T) {
	block := []string{"DIST1", "1", "0", "FFF92230", "D05", "5", "64", "C8", "12C"}
	r, err := DecodeScan(tokensOf(scanHeader, block))
	if r != nil {
		t.Errorf("expected no record, got %+v", r)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Field != "dist_samples" {
		t.Errorf("Field = %q, want dist_samples", pe.Field)
	}
	if !errors.Is(err, ErrChannelEnd) {
		t.Error("error should wrap ErrChannelEnd")
	}
}

func TestDecodeScan_HugeSampleCount(t *testing.T) {
	block := []string{"DIST1", "1", "0", "FFF92230", "D05", "FFFFFFFFFFFFFFFF"}
	_, err := DecodeScan(tokensOf(scanHeader, block))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Field != "dist_samples" {
		t.Fatalf("expected dist_samples ParseError, got %v", err)
	}
}

func TestDecodeScan_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		field  string
	}{
		{"empty", nil, "command_type"},
		{"command only", []string{"sRA"}, "command"},
		{"short header", scanHeader[:10], "transmission_time"},
		{"19 tokens", scanHeader[:19], "channels_16bit"},
		{"bad hex version", replaceAt(scanHeader, 2, "XYZ"), "version"},
		{"bad octal status", replaceAt(scanHeader, 6, "9"), "device_status"},
		{"bad scan frequency", replaceAt(scanHeader, 16, "G"), "scan_frequency"},
		{"truncated block", tokensOf(scanHeader, distBlock[:3]), "dist_start_angle"},
		{"bad scale", tokensOf(scanHeader, replaceAt(distBlock, 1, "?")), "dist_scale_factor"},
		{"bad resolution", tokensOf(scanHeader, replaceAt(distBlock, 4, "-1")), "dist_angular_resolution"},
		{"start angle too wide", tokensOf(scanHeader, replaceAt(distBlock, 3, "1FFF92230")), "dist_start_angle"},
		{"bad sample", tokensOf(scanHeader, replaceAt(distBlock, 7, "0x")), "dist_samples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeScan(tt.tokens)
			if r != nil {
				t.Error("record must be nil on error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Field != tt.field {
				t.Errorf("Field = %q, want %q (%v)", pe.Field, tt.field, err)
			}
		})
	}
}

func TestParseScan(t *testing.T) {
	payload := strings.Join(tokensOf(scanHeader, distBlock), " ")
	r, err := ParseScan(payload)
	if err != nil {
		t.Fatalf("ParseScan error: %v", err)
	}
	if r.Distance == nil || r.Distance.SampleCount != 3 {
		t.Errorf("unexpected record %+v", r)
	}
}

func TestChannelHeader_Angle(t *testing.T) {
	h := ChannelHeader{StartAngle: -45, AngularResolution: 0.5}
	if h.Angle(0) != -45 || h.Angle(4) != -43 {
		t.Errorf("Angle() = %v, %v", h.Angle(0), h.Angle(4))
	}
}

func replaceAt(tokens []string, i int, v string) []string {
	out := append([]string(nil), tokens...)
	out[i] = v
	return out
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatCommandType(t *testing.T) {
	tests := map[string]string{
		"sRN": "READ",
		"sRA": "READ_ANSWER",
		"sFA": "FAILURE",
		"sSN": "EVENT_DATA",
		"xyz": "UNKNOWN",
	}
	for prefix, want := range tests {
		if got := FormatCommandType(prefix); got != want {
			t.Errorf("FormatCommandType(%q) = %q, want %q", prefix, got, want)
		}
	}
}

func TestFormatScan(t *testing.T) {
	r, err := DecodeScan(tokensOf(scanHeader, distBlock))
	if err != nil {
		t.Fatalf("DecodeScan error: %v", err)
	}
	out := FormatScan(r)
	for _, want := range []string{"LMDscandata", "25.00 Hz", "DIST1", "3 samples", "min=0.100 m", "max=0.300 m", "RSSI: (not present)"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatScan output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatPayload(t *testing.T) {
	if got := FormatPayload("sRA DItype E TIM561"); got != "READ_ANSWER (sRA) DItype E TIM561\n" {
		t.Errorf("FormatPayload = %q", got)
	}
	if got := FormatPayload("   "); got != "(empty payload)\n" {
		t.Errorf("FormatPayload = %q", got)
	}
}

// ============================================================
// CBOR Tests
// ============================================================

func TestScanCBOR_RoundTrip(t *testing.T) {
	r, err := DecodeScan(tokensOf(scanHeader, distBlock, rssiBlock))
	if err != nil {
		t.Fatalf("DecodeScan error: %v", err)
	}
	data, err := MarshalScanCBOR(r)
	if err != nil {
		t.Fatalf("MarshalScanCBOR error: %v", err)
	}
	back, err := UnmarshalScanCBOR(data)
	if err != nil {
		t.Fatalf("UnmarshalScanCBOR error: %v", err)
	}
	if back.SerialNumber != r.SerialNumber || back.ScanFrequency != r.ScanFrequency {
		t.Errorf("header mismatch: %+v", back)
	}
	if back.Distance == nil || len(back.Distance.Distances) != 3 || back.Distance.StartAngle != -45 {
		t.Errorf("distance mismatch: %+v", back.Distance)
	}
	if back.RSSI == nil || back.RSSI.Label != "RSSI1" {
		t.Errorf("rssi mismatch: %+v", back.RSSI)
	}
}

func TestScanCBOR_Deterministic(t *testing.T) {
	r, _ := DecodeScan(scanHeader)
	a, _ := MarshalScanCBOR(r)
	b, _ := MarshalScanCBOR(r)
	if !bytes.Equal(a, b) {
		t.Error("encoding should be deterministic")
	}
}

func TestScanCBOR_Errors(t *testing.T) {
	if _, err := MarshalScanCBOR(nil); err == nil {
		t.Error("expected error for nil record")
	}
	if _, err := UnmarshalScanCBOR(nil); err == nil {
		t.Error("expected error for empty data")
	}
	if _, err := UnmarshalScanCBOR([]byte{0xFF, 0x00}); err == nil {
		t.Error("expected error for garbage")
	}
}
