// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides the byte streams a TiM device is reached over:
// plain TCP (the device's native CoLa-A port), a serial port, or a WebSocket
// bridge. All of them satisfy Conn so the telegram cycle does not care which
// one is in use.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// Conn is an open byte stream to a device
type Conn interface {
	io.Reader
	io.Writer
	io.Closer

	// SetReadTimeout bounds every following Read. Zero disables the timeout.
	SetReadTimeout(d time.Duration) error
}

// Dialer opens a Conn to an address whose format depends on the transport:
// "host:port" for TCP, a device path for serial, a ws:// or wss:// URL for
// WebSocket.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// Kind names a transport in configuration
type Kind string

// Transport kinds
const (
	KindTCP       Kind = "tcp"
	KindSerial    Kind = "serial"
	KindWebSocket Kind = "websocket"
)

// ParseKind validates a transport name
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTCP, KindSerial, KindWebSocket:
		return k, nil
	case "ws", "wss":
		return KindWebSocket, nil
	case "":
		return KindTCP, nil
	}
	return "", fmt.Errorf("unknown transport %q (use tcp, serial or websocket)", s)
}

var (
	// ErrTimeout is returned by Read when no data arrived within the read timeout
	ErrTimeout = errors.New("read timeout")

	// ErrConnectionClosed is returned when reading from a closed connection
	ErrConnectionClosed = errors.New("connection closed")
)

// IsTimeout reports whether err is a read timeout from any transport
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
