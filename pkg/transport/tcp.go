// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultTCPPort is the CoLa-A port of TiM devices
const DefaultTCPPort = 2111

// TCPDialer connects to the device's CoLa-A TCP port
type TCPDialer struct {
	// KeepAlive is passed to net.Dialer; zero uses the Go default
	KeepAlive time.Duration
}

// Dial connects to address. A bare host gets DefaultTCPPort.
func (d TCPDialer) Dial(ctx context.Context, address string) (Conn, error) {
	nd := net.Dialer{KeepAlive: d.KeepAlive}
	c, err := nd.DialContext(ctx, "tcp", WithDefaultPort(address, DefaultTCPPort))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return NewStreamConn(c), nil
}

// WithDefaultPort appends port to address if it has none
func WithDefaultPort(address string, port int) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(port))
}

// StreamConn adapts a net.Conn, applying the read timeout as a deadline
// before every Read
type StreamConn struct {
	conn    net.Conn
	timeout time.Duration
}

// NewStreamConn wraps an already connected net.Conn
func NewStreamConn(c net.Conn) *StreamConn {
	return &StreamConn{conn: c}
}

func (s *StreamConn) Read(p []byte) (int, error) {
	var deadline time.Time
	if s.timeout > 0 {
		deadline = time.Now().Add(s.timeout)
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	return s.conn.Read(p)
}

func (s *StreamConn) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

func (s *StreamConn) Close() error {
	return s.conn.Close()
}

// SetReadTimeout sets the per-Read timeout
func (s *StreamConn) SetReadTimeout(d time.Duration) error {
	s.timeout = d
	return nil
}

// RemoteAddr returns the peer address
func (s *StreamConn) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}
