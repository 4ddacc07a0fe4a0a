// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import (
	"fmt"
	"strings"
)

// FormatCommandType returns the human-readable name for a telegram prefix
func FormatCommandType(prefix string) string {
	switch prefix {
	case PrefixRead:
		return "READ"
	case PrefixWrite:
		return "WRITE"
	case PrefixMethod:
		return "METHOD"
	case PrefixEvent:
		return "EVENT"
	case PrefixReadAnswer:
		return "READ_ANSWER"
	case PrefixWriteAnswer:
		return "WRITE_ANSWER"
	case PrefixMethodAnswer:
		return "METHOD_ANSWER"
	case PrefixEventAnswer:
		return "EVENT_ANSWER"
	case PrefixEventData:
		return "EVENT_DATA"
	case PrefixFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// FormatDeviceState returns the name of an SCdevicestate value
func FormatDeviceState(s DeviceState) string {
	switch s {
	case DeviceStateBusy:
		return "Busy"
	case DeviceStateReady:
		return "Ready"
	case DeviceStateError:
		return "Error"
	case DeviceStateStandby:
		return "Standby"
	default:
		return "Unknown"
	}
}

// FormatPayload formats an answer payload as "[TYPE] payload"
func FormatPayload(payload string) string {
	tokens := Tokens(payload)
	if len(tokens) == 0 {
		return "(empty payload)\n"
	}
	return fmt.Sprintf("%s (%s) %s\n", FormatCommandType(tokens[0]), tokens[0], strings.Join(tokens[1:], " "))
}

// FormatScan formats a scan record into a human-readable summary
func FormatScan(r *ScanRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s v%d  device=%d serial=%d status=%d\n",
		r.CommandType, r.Command, r.Version, r.DeviceNumber, r.SerialNumber, r.DeviceStatus)
	fmt.Fprintf(&b, "  Telegram: %d  Scan: %d  Uptime: %s  Transmit: %s\n",
		r.TelegramCounter, r.ScanCounter, formatMicros(r.Uptime), formatMicros(r.TransmissionTime))
	fmt.Fprintf(&b, "  Inputs: 0x%X  Outputs: 0x%X  Layer: %d  Encoders: %d\n",
		r.InputStatus, r.OutputStatus, r.LayerAngle, r.EncoderCount)
	fmt.Fprintf(&b, "  Scan freq: %.2f Hz  Meas freq: %.2f  16-bit channels: %d\n",
		r.ScanFrequency, r.MeasurementFrequency, r.Channels16Bit)

	if r.Distance == nil {
		b.WriteString("  Distance: (not present)\n")
	} else {
		d := r.Distance
		fmt.Fprintf(&b, "  Distance %s: %s\n", d.Label, formatChannelHeader(&d.ChannelHeader))
		if lo, hi, mean, ok := d.Range(); ok {
			fmt.Fprintf(&b, "    min=%.3f m  max=%.3f m  mean=%.3f m\n", lo, hi, mean)
		}
	}

	if r.RSSI == nil {
		b.WriteString("  RSSI: (not present)\n")
	} else {
		fmt.Fprintf(&b, "  RSSI %s: %s\n", r.RSSI.Label, formatChannelHeader(&r.RSSI.ChannelHeader))
	}

	return b.String()
}

func formatChannelHeader(h *ChannelHeader) string {
	return fmt.Sprintf("%d samples from %.4f° step %.4f° (scale %d, offset %d)",
		h.SampleCount, h.StartAngle, h.AngularResolution, h.ScaleFactor, h.ScaleFactorOffset)
}

// summarize returns min, max and mean; values must be non-empty
func summarize(values []float64) (float64, float64, float64) {
	lo, hi, sum := values[0], values[0], 0.0
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += v
	}
	return lo, hi, sum / float64(len(values))
}

// formatMicros formats a microsecond counter as seconds
func formatMicros(us uint64) string {
	return fmt.Sprintf("%.3fs", float64(us)/1e6)
}
