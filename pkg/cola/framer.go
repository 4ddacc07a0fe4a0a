// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import "unicode/utf8"

// Frame wraps a command in STX/ETX and appends the pad byte.
// The command is written as-is; no length limit is enforced here.
func Frame(command string) []byte {
	telegram := make([]byte, 0, len(command)+3)
	telegram = append(telegram, STX)
	telegram = append(telegram, command...)
	telegram = append(telegram, ETX, Pad)
	return telegram
}

// Unframe validates the STX/ETX delimiters of a received telegram and
// returns the payload text between them.
func Unframe(telegram []byte) (string, error) {
	if len(telegram) < 2 || telegram[0] != STX || telegram[len(telegram)-1] != ETX {
		return "", newFramingError(telegram)
	}

	payload := telegram[1 : len(telegram)-1]
	if !utf8.Valid(payload) {
		return "", &EncodingError{Offset: invalidUTF8Offset(payload)}
	}

	return string(payload), nil
}

// invalidUTF8Offset returns the byte offset of the first invalid sequence
func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
