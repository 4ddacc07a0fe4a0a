// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package cola implements the ASCII variant of SICK's SOPAS command language
// (CoLa-A) as spoken by TiM-series laser rangefinders.
//
// The package is transport-free: it frames and unframes telegrams, classifies
// sFA error answers, builds command strings and decodes LMDscandata answers
// into ScanRecords. Exchanging telegrams with a device is done by package tim.
package cola

// Telegram framing bytes
const (
	STX = 0x02 // Start of text
	ETX = 0x03 // End of text
	Pad = 0x00 // Trailing byte appended to outgoing telegrams
)

// MaxTelegramSize is the largest telegram a device will send (bytes).
const MaxTelegramSize = 65535

// Command prefixes (client → device)
const (
	PrefixRead   = "sRN" // Read variable
	PrefixWrite  = "sWN" // Write variable
	PrefixMethod = "sMN" // Invoke method
	PrefixEvent  = "sEN" // Event registration
)

// Answer prefixes (device → client)
const (
	PrefixReadAnswer   = "sRA"
	PrefixWriteAnswer  = "sWA"
	PrefixMethodAnswer = "sAN"
	PrefixEventAnswer  = "sEA"
	PrefixEventData    = "sSN"
	PrefixFailure      = "sFA"
)

// Scan channel tags. A channel anchor is the first token containing the tag.
const (
	TagDistance = "DIST"
	TagRSSI     = "RSSI"
)

// Scan decoding scales
const (
	frequencyDivisor    = 100   // scan/measurement frequency, 1/100 Hz
	angleDivisor        = 10000 // start angle and resolution, 1/10000 deg
	millimetresPerMetre = 1000
	startAngleOffset    = 1 << 32
)

// headerTokens is the number of fixed header tokens in an LMDscandata answer.
const headerTokens = 20

// DeviceState is the value reported by SCdevicestate.
type DeviceState int

// Device state values
const (
	DeviceStateBusy DeviceState = iota
	DeviceStateReady
	DeviceStateError
	DeviceStateStandby
)
