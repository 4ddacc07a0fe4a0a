// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tim

import (
	"context"

	"github.com/Thermoquad/colastat/pkg/cola"
)

// Session describes what Connect does after opening the connection
type Session struct {
	// UserLevel and Password log in with SetAccessMode. Both or neither.
	UserLevel string
	Password  string

	// LocationName is written after login when not empty. Without
	// credentials the authorized client login is used for the write.
	LocationName string
}

// Connect opens a device and prepares the session. On any error the device
// is closed again.
func Connect(ctx context.Context, address string, s Session, opts ...Option) (*Device, error) {
	if (s.UserLevel == "") != (s.Password == "") {
		return nil, ErrIncompleteCredentials
	}

	d := New(address, opts...)
	if err := d.Open(ctx); err != nil {
		return nil, err
	}

	if err := d.startSession(s); err != nil {
		d.Close()
		return nil, err
	}

	d.session = s
	d.log.Debug("session ready")
	return d, nil
}

// Reconnect reopens a dropped connection and repeats the login and location
// name Connect applied. It does nothing if the device is open.
func (d *Device) Reconnect(ctx context.Context) error {
	if d.conn != nil {
		return nil
	}
	if err := d.Open(ctx); err != nil {
		return err
	}
	if err := d.startSession(d.session); err != nil {
		d.Close()
		return err
	}
	d.log.Debug("session restored")
	return nil
}

func (d *Device) startSession(s Session) error {
	level, password := s.UserLevel, s.Password
	if level == "" && s.LocationName != "" {
		d.log.Info("location name given without credentials, logging in as authorized client")
		level, password = cola.UserLevelAuthorizedClient, cola.PasswordAuthorizedClient
	}

	if level != "" {
		if err := d.SetAccessMode(level, password); err != nil {
			return err
		}
	}

	if s.LocationName != "" {
		if err := d.SetLocationName(s.LocationName); err != nil {
			return err
		}
	}
	return nil
}
