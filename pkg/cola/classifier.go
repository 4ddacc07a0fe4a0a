// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import (
	"strconv"
	"strings"
)

// Classify checks a payload for an sFA failure answer.
//
// Any command may be answered with sFA instead of its normal answer, so this
// must run before command-specific parsing. A payload starting with "sFA"
// yields a *DeviceError selected by its last token, read as a hex index into
// the SOPAS error table; an index outside the table or a non-hex token yields
// a *ProtocolViolation. Every other payload is returned unchanged.
func Classify(payload string) (string, error) {
	if !strings.HasPrefix(payload, PrefixFailure) {
		return payload, nil
	}

	token := LastToken(payload)
	if token == "" || token == PrefixFailure {
		return "", &ProtocolViolation{Payload: payload, Token: token, Reason: "sFA answer without error code"}
	}

	index, err := strconv.ParseUint(token, 16, 64)
	if err != nil {
		return "", &ProtocolViolation{Payload: payload, Token: token, Reason: "error code is not hexadecimal"}
	}

	if index >= uint64(ErrorCodeCount) {
		return "", &ProtocolViolation{
			Payload: payload,
			Token:   token,
			Reason:  "unknown device error " + strconv.FormatUint(index, 10),
		}
	}

	return "", NewDeviceError(ErrorCode(index), payload)
}
