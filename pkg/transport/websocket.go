// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer connects through a WebSocket bridge that forwards each
// message to the device's serial or TCP port
type WebSocketDialer struct {
	Username      string
	Password      string
	SkipSSLVerify bool

	// HandshakeTimeout defaults to 10 seconds
	HandshakeTimeout time.Duration
}

// Dial opens a WebSocket connection with optional HTTP Basic auth
func (d WebSocketDialer) Dial(ctx context.Context, address string) (Conn, error) {
	// Parse and validate URL
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	handshake := d.HandshakeTimeout
	if handshake == 0 {
		handshake = 10 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: handshake,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: d.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if d.Username != "" && d.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(d.Username + ":" + d.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, address, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConn{conn: conn}, nil
}

// WebSocketConn carries one telegram per message. Reads return buffered
// message data first.
type WebSocketConn struct {
	conn      *websocket.Conn
	timeout   time.Duration
	buf       []byte
	bufOffset int
	closed    bool // Set after the first read error; gorilla connections do not recover
}

func (w *WebSocketConn) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	var deadline time.Time
	if w.timeout > 0 {
		deadline = time.Now().Add(w.timeout)
	}
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}

	// Text and binary messages both carry CoLa-A telegrams
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		w.closed = true
		if IsTimeout(err) {
			return 0, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return 0, err
	}

	w.buf = data
	n := copy(p, w.buf)
	w.bufOffset = n
	return n, nil
}

func (w *WebSocketConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConn) Close() error {
	w.closed = true
	return w.conn.Close()
}

// SetReadTimeout sets the per-Read timeout
func (w *WebSocketConn) SetReadTimeout(d time.Duration) error {
	w.timeout = d
	return nil
}
