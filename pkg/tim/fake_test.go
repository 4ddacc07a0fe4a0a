// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tim

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/colastat/pkg/transport"
)

// handler returns the raw bytes a fake TiM writes for a command, or nil to
// stay silent
type handler func(cmd string) []byte

// framed wraps a payload the way a TiM does
func framed(payload string) []byte {
	return []byte("\x02" + payload + "\x03")
}

// scripted answers known commands and fails the rest with
// Sopas_Error_UNKNOWN_COLA_COMMAND
func scripted(answers map[string]string) handler {
	return func(cmd string) []byte {
		if a, ok := answers[cmd]; ok {
			return framed(a)
		}
		return framed("sFA C")
	}
}

// fakeTiM answers telegrams through a handler. Every Dial gets a fresh
// net.Pipe; client and server are the ends of the latest one.
type fakeTiM struct {
	t *testing.T
	h handler

	mu       sync.Mutex
	received []string
	dials    int

	client net.Conn
	server net.Conn
	err    error // Returned by Dial when set
}

func newFakeTiM(t *testing.T, h handler) *fakeTiM {
	t.Helper()
	return &fakeTiM{t: t, h: h}
}

// serve answers telegrams arriving on server until it is closed
func (f *fakeTiM) serve(server net.Conn) {
	defer server.Close()
	buf := make([]byte, 4096)
	for {
		n, err := server.Read(buf)
		if err != nil {
			return
		}
		cmd := strings.TrimSuffix(strings.TrimPrefix(string(buf[:n]), "\x02"), "\x03\x00")

		f.mu.Lock()
		f.received = append(f.received, cmd)
		f.mu.Unlock()

		if resp := f.h(cmd); resp != nil {
			if _, err := server.Write(resp); err != nil {
				return
			}
		}
	}
}

// Dial implements transport.Dialer
func (f *fakeTiM) Dial(ctx context.Context, address string) (transport.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.err != nil {
		return nil, f.err
	}

	client, server := net.Pipe()
	f.client, f.server = client, server
	go f.serve(server)
	f.t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return transport.NewStreamConn(client), nil
}

func (f *fakeTiM) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

// openFake returns an open Device backed by a fake TiM
func openFake(t *testing.T, h handler, opts ...Option) (*Device, *fakeTiM) {
	t.Helper()
	f := newFakeTiM(t, h)
	opts = append([]Option{WithDialer(f), WithTimeout(time.Second)}, opts...)
	d := New("fake:2111", opts...)
	require.NoError(t, d.Open(context.Background()))
	t.Cleanup(func() { d.Close() })
	return d, f
}
