// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tim

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned by Send and Read before Open or after Close
	ErrNotConnected = errors.New("device is not connected")

	// ErrIncompleteCredentials is returned by Connect when only one of user
	// level and password is given
	ErrIncompleteCredentials = errors.New("both user level and password need to be provided")
)

// ConnectionError is a transport failure. The session is gone and the
// device has to be opened again.
type ConnectionError struct {
	Op      string // "open", "send" or "read"
	Address string
	Err     error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Address, e.Err)
}

// Unwrap returns the transport error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError means no answer arrived within the read timeout. The command
// may be retried.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("no answer within %v", e.Timeout)
	}
	return fmt.Sprintf("no answer to %q within %v", e.Command, e.Timeout)
}

// MalformedTelegram wraps a cola.FramingError or cola.EncodingError for a
// received telegram
type MalformedTelegram struct {
	Telegram []byte
	Err      error
}

// Error implements the error interface
func (e *MalformedTelegram) Error() string {
	return fmt.Sprintf("malformed telegram (%d bytes): %v", len(e.Telegram), e.Err)
}

// Unwrap returns the framing or encoding error
func (e *MalformedTelegram) Unwrap() error {
	return e.Err
}

// UnexpectedAnswerError is a well-formed answer that does not match what
// the command documents
type UnexpectedAnswerError struct {
	Command string
	Answer  string
	Err     error // Parser detail, may be nil
}

// Error implements the error interface
func (e *UnexpectedAnswerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected answer to %q: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("unexpected answer to %q: %q", e.Command, e.Answer)
}

// Unwrap returns the parser error
func (e *UnexpectedAnswerError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if err is or wraps a TimeoutError
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsConnectionError returns true if err is or wraps a ConnectionError
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
