// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the factory setting of the TiM/LMS auxiliary port
const DefaultBaudRate = 115200

// SerialDialer opens a serial port at 8N1
type SerialDialer struct {
	BaudRate int
}

// Dial opens the serial device at address, e.g. /dev/ttyUSB0
func (d SerialDialer) Dial(ctx context.Context, address string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(address, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", address, err)
	}

	return &SerialConn{port: port}, nil
}

// SerialConn wraps a serial port
type SerialConn struct {
	port serial.Port
}

// Read returns ErrTimeout when the port's read timeout expires with no data
func (s *SerialConn) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, ErrTimeout
	}
	return n, nil
}

func (s *SerialConn) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConn) Close() error {
	return s.port.Close()
}

// SetReadTimeout sets the port read timeout; zero blocks forever
func (s *SerialConn) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		d = serial.NoTimeout
	}
	return s.port.SetReadTimeout(d)
}
