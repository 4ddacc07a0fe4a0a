// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import (
	"errors"
	"fmt"
)

// ErrorCode is an index into the SOPAS error table carried by sFA answers.
type ErrorCode uint8

// SOPAS error codes, in protocol order
const (
	SopasOk ErrorCode = iota
	SopasMethodInAccessDenied
	SopasMethodInUnknownIndex
	SopasVariableUnknownIndex
	SopasLocalConditionFailed
	SopasInvalidData
	SopasUnknownError
	SopasBufferOverflow
	SopasBufferUnderflow
	SopasErrorUnknownType
	SopasVariableWriteAccessDenied
	SopasUnknownCmdForNameserver
	SopasUnknownColaCommand
	SopasMethodInServerBusy
	SopasFlexOutOfBounds
	SopasEventRegUnknownIndex
	SopasColaAValueOverflow
	SopasColaAInvalidCharacter
	SopasOsaiNoMessage
	SopasOsaiNoAnswerMessage
	SopasInternal
	SopasHubAddressCorrupted
	SopasHubAddressDecoding
	SopasHubAddressAddressExceeded
	SopasHubAddressBlankExpected
	SopasAsyncMethodsAreSuppressed
	SopasComplexArraysNotSupported
)

type errorEntry struct {
	name        string
	description string
}

// errorTable is indexed by ErrorCode. Order is fixed by the protocol.
// Descriptions are kept as published, typos and typographic quotes included,
// so they match what other SOPAS tools print.
var errorTable = [...]errorEntry{
	{"Sopas_Ok", "No error"},
	{"Sopas_Error_METHODIN_ACCESSDENIED", "Wrong userlevel, access to method not allowed"},
	{"Sopas_Error_METHODIN_UNKNOWNINDEX", "Trying to access a method with an unknown Sopas index"},
	{"Sopas_Error_VARIABLE_UNKNOWNINDEX", "Trying to access a variable with an unknown Sopas index"},
	{"Sopas_Error_LOCALCONDITIONFAILED", "Local condition violated, e.g. giving a value that exceeds the minimum or maximum allowed value for this variable"},
	{"Sopas_Error_INVALID_DATA", "Invalid data given for variable, this errorcode is deprecated (is not used anymore)."},
	{"Sopas_Error_UNKNOWN_ERROR", "An error with unknown reason occurred, this errorcode is deprecated."},
	{"Sopas_Error_BUFFER_OVERFLOW", "The communication buffer was too small for the amount of data that should be serialised."},
	{"Sopas_Error_BUFFER_UNDERFLOW", "More data was expected, the allocated buffer could not be filled."},
	{"Sopas_Error_ERROR_UNKNOWN_TYPE", "The variable that shall be serialised has an unknown type. This can only happen when there are variables in the firmware of the device that do not exist in the released description of the device. This should never happen."},
	{"Sopas_Error_VARIABLE_WRITE_ACCESSDENIED", "It is not allowed to write values to this variable. Probably the variable is defined as read-only."},
	{"Sopas_Error_UNKNOWN_CMD_FOR_NAMESERVER", "When using names instead of indices, a command was issued that the nameserver does not understand."},
	{"Sopas_Error_UNKNOWN_COLA_COMMAND", "The CoLa protocol specification does not define the given command, command is unknown."},
	{"Sopas_Error_METHODIN_SERVER_BUSY", "It is not possible to issue more than one command at a time to an SRT device."},
	{"Sopas_Error_FLEX_OUT_OF_BOUNDS", "An dataay was accessed over its maximum length."},
	{"Sopas_Error_EVENTREG_UNKNOWNINDEX", "The event you wanted to register for does not exist, the index is unknown."},
	{"Sopas_Error_COLA_A_VALUE_OVERFLOW", "The value does not fit into the value field, it is too large."},
	{"Sopas_Error_COLA_A_INVALID_CHARACTER", "Character is unknown, probably not alphanumeric."},
	{"Sopas_Error_OSAI_NO_MESSAGE", "Only when using SRTOS in the firmware and distributed variables this error can occur. It is an indication that no operating system message could be created. This happens when trying to GET a variable."},
	{"Sopas_Error_OSAI_NO_ANSWER_MESSAGE", "This is the same as \"Sopas_Error_OSAI_NO_MESSAGE\" with the difference that it is thrown when trying to PUT a variable."},
	{"Sopas_Error_INTERNAL", "Internal error in the firmware, problably a pointer to a parameter was null."},
	{"Sopas_Error_HubAddressCorrupted", "The Sopas Hubaddress is either too short or too long."},
	{"Sopas_Error_HubAddressDecoding", "The Sopas Hubaddress is invalid, it can not be decoded (Syntax)."},
	{"Sopas_Error_HubAddressAddressExceeded", "Too many hubs in the address"},
	{"Sopas_Error_HubAddressBlankExpected", "When parsing a HubAddress an expected blank was not found. The HubAddress is not valid."},
	{"Sopas_Error_AsyncMethodsAreSuppressed", "An asynchronous method call was made although the device was built with “AsyncMethodsSuppressed”. This is an internal error that should never happen in a released device."},
	{"Sopas_Error_ComplexArraysNotSupported", "Device was built with „ComplexArraysSuppressed“ because the compiler does not allow recursions. But now a complex dataay was found. This is an internal error that should never happen in a released device."},
}

// ErrorCodeCount is the number of entries in the SOPAS error table.
const ErrorCodeCount = len(errorTable)

// Valid reports whether c indexes the error table
func (c ErrorCode) Valid() bool {
	return int(c) < ErrorCodeCount
}

// String returns the SOPAS name of the code, e.g. Sopas_Error_INTERNAL
func (c ErrorCode) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Sopas_Error_0x%02X", uint8(c))
	}
	return errorTable[c].name
}

// Description returns the fixed human-readable description of the code
func (c ErrorCode) Description() string {
	if !c.Valid() {
		return "unknown device error"
	}
	return errorTable[c].description
}

// DeviceError is a failure reported by the device in an sFA answer.
// It is not a client bug; callers decide whether to retry, e.g. after
// logging in again on SopasMethodInAccessDenied.
type DeviceError struct {
	Code        ErrorCode
	Name        string
	Description string
	Payload     string // Raw sFA payload
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s : %s", e.Name, e.Description)
}

// NewDeviceError builds a DeviceError for a table code
func NewDeviceError(code ErrorCode, payload string) *DeviceError {
	return &DeviceError{
		Code:        code,
		Name:        code.String(),
		Description: code.Description(),
		Payload:     payload,
	}
}

// IsDeviceError returns true if err is or wraps a DeviceError
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// ProtocolViolation is an sFA answer whose error index is not in the table,
// which means the device and this client disagree about the protocol.
type ProtocolViolation struct {
	Payload string
	Token   string
	Reason  string
}

// Error implements the error interface
func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation: %s (token %q in %q)", e.Reason, e.Token, e.Payload)
}

// FramingError is a telegram without a leading STX or a trailing ETX
type FramingError struct {
	Length int
	First  byte
	Last   byte
}

func newFramingError(telegram []byte) *FramingError {
	e := &FramingError{Length: len(telegram)}
	if len(telegram) > 0 {
		e.First = telegram[0]
		e.Last = telegram[len(telegram)-1]
	}
	return e
}

// Error implements the error interface
func (e *FramingError) Error() string {
	if e.Length == 0 {
		return "improper open and close bytes in message: empty telegram"
	}
	return fmt.Sprintf("improper open and close bytes in message: first=0x%02X last=0x%02X len=%d",
		e.First, e.Last, e.Length)
}

// EncodingError is a telegram payload that is not valid UTF-8
type EncodingError struct {
	Offset int
}

// Error implements the error interface
func (e *EncodingError) Error() string {
	return fmt.Sprintf("invalid UTF-8 in payload at byte %d", e.Offset)
}

// ParseError is a scan telegram that does not match the expected layout.
// Field names the value that could not be decoded.
type ParseError struct {
	Field string
	Index int    // Token index, -1 if not applicable
	Token string // Offending token, empty if missing
	Err   error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("scan field %s", e.Field)
	if e.Index >= 0 {
		msg += fmt.Sprintf(" (token %d", e.Index)
		if e.Token != "" {
			msg += fmt.Sprintf(" %q", e.Token)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse error causes
var (
	ErrMissingToken = errors.New("not enough tokens")
	ErrChannelEnd   = errors.New("channel extends past end of telegram")
	ErrNoDistance   = errors.New("RSSI start angle is read from the distance channel, which is absent")
)
