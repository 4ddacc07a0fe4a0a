// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/colastat/internal/config"
	"github.com/Thermoquad/colastat/pkg/tim"
	"github.com/Thermoquad/colastat/pkg/transport"
)

// GetPassword retrieves a password from envVar or prompts the user
func GetPassword(envVar, prompt string) (string, error) {
	// First check environment variable
	if pw := os.Getenv(envVar); pw != "" {
		return pw, nil
	}

	fmt.Fprintf(os.Stderr, "%s: ", prompt)

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// endpoint is a dialer plus the address it dials
type endpoint struct {
	dialer  transport.Dialer
	address string
	info    string // Human-readable, for banners
}

// resolveEndpoint picks the transport from the config. password is only
// used for WebSocket Basic auth.
func resolveEndpoint(c *config.Config, password string) (endpoint, error) {
	kind, err := transport.ParseKind(c.Device.Transport)
	if err != nil {
		return endpoint{}, err
	}

	d := c.Device
	switch kind {
	case transport.KindSerial:
		return endpoint{
			dialer:  transport.SerialDialer{BaudRate: d.BaudRate},
			address: d.SerialPort,
			info:    fmt.Sprintf("Serial: %s @ %d baud", d.SerialPort, d.BaudRate),
		}, nil

	case transport.KindWebSocket:
		return endpoint{
			dialer: transport.WebSocketDialer{
				Username:      d.Username,
				Password:      password,
				SkipSSLVerify: d.SkipSSLVerify,
			},
			address: d.URL,
			info:    fmt.Sprintf("WebSocket: %s", d.URL),
		}, nil

	default:
		address := transport.WithDefaultPort(d.Host, d.Port)
		return endpoint{
			dialer:  transport.TCPDialer{},
			address: address,
			info:    fmt.Sprintf("TCP: %s", address),
		}, nil
	}
}

// sessionFor returns the login and location name to apply after connecting.
// The access mode password is only asked for when a user level is set.
func sessionFor(c *config.Config, level string) (tim.Session, error) {
	s := tim.Session{LocationName: c.Device.LocationName}
	if level == "" {
		level = c.Access.UserLevel
	}
	if level == "" {
		return s, nil
	}

	password, err := GetPassword("TIM_PASSWORD", fmt.Sprintf("Password for user level %s", level))
	if err != nil {
		return s, err
	}
	s.UserLevel = level
	s.Password = password
	return s, nil
}

// OpenDevice connects using the effective config and starts the session
func OpenDevice(ctx context.Context, s tim.Session) (*tim.Device, string, error) {
	wsPassword := ""
	if kind, _ := transport.ParseKind(cfg.Device.Transport); kind == transport.KindWebSocket && cfg.Device.Username != "" {
		var err error
		wsPassword, err = GetPassword("TIM_WS_PASSWORD", "WebSocket password")
		if err != nil {
			return nil, "", err
		}
	}

	ep, err := resolveEndpoint(cfg, wsPassword)
	if err != nil {
		return nil, "", err
	}

	dev, err := tim.Connect(ctx, ep.address, s,
		tim.WithDialer(ep.dialer),
		tim.WithTimeout(cfg.Timeout()),
		tim.WithLogger(log.WithField("device", ep.address)),
		tim.WithMetrics(metrics),
	)
	if err != nil {
		return nil, "", err
	}
	return dev, ep.info, nil
}

// openConfigured opens the device with the configured access level
func openConfigured(ctx context.Context) (*tim.Device, string, error) {
	s, err := sessionFor(cfg, "")
	if err != nil {
		return nil, "", err
	}
	return OpenDevice(ctx, s)
}
