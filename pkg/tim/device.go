// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package tim talks to a SICK TiM rangefinder over CoLa-A.
//
// A Device owns one connection and runs a strict request/response cycle:
// Send one command, Read its answer, repeat. The device itself rejects
// overlapping commands (Sopas_Error_METHODIN_SERVER_BUSY), so nothing is
// queued or pipelined here and a Device must not be shared between
// goroutines. Retries are left to the caller.
//
//	dev := tim.New("169.254.219.5:2111", tim.WithTimeout(2*time.Second))
//	if err := dev.Open(ctx); err != nil {
//	    return err
//	}
//	defer dev.Close()
//	scan, err := dev.Scan()
package tim

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/colastat/pkg/cola"
	"github.com/Thermoquad/colastat/pkg/transport"
)

// State of the command/response cycle
type State int

// Cycle states
const (
	StateIdle State = iota
	StateAwaitingResponse
)

func (s State) String() string {
	if s == StateAwaitingResponse {
		return "AwaitingResponse"
	}
	return "Idle"
}

// Device is a session with one TiM
type Device struct {
	address string
	cfg     Config
	log     logrus.FieldLogger
	stats   *Statistics
	session Session // Replayed by Reconnect

	conn    transport.Conn
	state   State
	pending string    // Last command sent
	sentAt  time.Time // When pending was sent
	buf     []byte
}

// New creates a closed Device for address. The address format depends on
// the dialer; see transport.Dialer.
func New(address string, opts ...Option) *Device {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Statistics == nil {
		cfg.Statistics = NewStatistics()
	}

	return &Device{
		address: address,
		cfg:     cfg,
		log:     cfg.Logger.WithField("device", address),
		stats:   cfg.Statistics,
	}
}

// Address returns the address passed to New
func (d *Device) Address() string {
	return d.address
}

// State returns the current cycle state
func (d *Device) State() State {
	return d.state
}

// IsOpen reports whether a connection is established
func (d *Device) IsOpen() bool {
	return d.conn != nil
}

// Statistics returns the exchange statistics tracker
func (d *Device) Statistics() *Statistics {
	return d.stats
}

// Open connects to the device. It does nothing if already open.
func (d *Device) Open(ctx context.Context) error {
	if d.conn != nil {
		return nil
	}

	conn, err := d.cfg.Dialer.Dial(ctx, d.address)
	if err != nil {
		return d.fail(&ConnectionError{Op: "open", Address: d.address, Err: err})
	}
	if err := conn.SetReadTimeout(d.cfg.Timeout); err != nil {
		conn.Close()
		return d.fail(&ConnectionError{Op: "open", Address: d.address, Err: err})
	}

	d.conn = conn
	d.state = StateIdle
	d.log.WithField("timeout", d.cfg.Timeout).Debug("connection opened")
	return nil
}

// Close releases the connection. It is safe to call in any state and more
// than once.
func (d *Device) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.state = StateIdle
	d.log.Debug("connection closed")
	return err
}

// Send frames and writes one command. The device must be open.
func (d *Device) Send(command string) error {
	if d.conn == nil {
		return ErrNotConnected
	}
	if d.state == StateAwaitingResponse {
		d.log.WithField("pending", d.pending).Warn("sending while a command is still awaiting its answer")
	}

	telegram := cola.Frame(command)
	if _, err := d.conn.Write(telegram); err != nil {
		d.drop()
		return d.fail(&ConnectionError{Op: "send", Address: d.address, Err: err})
	}

	d.state = StateAwaitingResponse
	d.pending = command
	d.sentAt = time.Now()
	d.cfg.Metrics.telegram(directionTx)
	d.log.WithFields(logrus.Fields{"cmd": command, "bytes": len(telegram)}).Debug("telegram sent")
	return nil
}

// Read receives one telegram and returns its payload.
//
// A single receive of at most cola.MaxTelegramSize bytes is made; a telegram
// split across receives fails as malformed. The payload is checked for an
// sFA failure answer, returned as *cola.DeviceError. Once a telegram has been
// received the cycle is Idle again, whatever its content. On timeout the
// cycle stays AwaitingResponse; on a transport failure the connection is
// dropped.
func (d *Device) Read() (string, error) {
	if d.conn == nil {
		return "", ErrNotConnected
	}
	if d.state != StateAwaitingResponse {
		d.log.Warn("reading without a command awaiting its answer")
	}
	if d.buf == nil {
		d.buf = make([]byte, cola.MaxTelegramSize)
	}

	n, err := d.conn.Read(d.buf)
	if err != nil {
		if transport.IsTimeout(err) {
			d.log.WithField("cmd", d.pending).Debug("read timed out")
			return "", d.fail(&TimeoutError{Command: d.pending, Timeout: d.cfg.Timeout})
		}
		d.drop()
		return "", d.fail(&ConnectionError{Op: "read", Address: d.address, Err: err})
	}

	command, elapsed := d.pending, time.Since(d.sentAt)
	d.state = StateIdle
	d.pending = ""
	d.cfg.Metrics.telegram(directionRx)
	d.cfg.Metrics.observe(elapsed)
	d.log.WithFields(logrus.Fields{"cmd": command, "bytes": n, "elapsed": elapsed}).Debug("telegram received")

	telegram := d.buf[:n]
	payload, err := cola.Unframe(telegram)
	if err != nil {
		return "", d.fail(&MalformedTelegram{Telegram: append([]byte(nil), telegram...), Err: err})
	}

	payload, err = cola.Classify(payload)
	if err != nil {
		d.log.WithField("cmd", command).WithError(err).Debug("device reported failure")
		return "", d.fail(err)
	}

	d.stats.Update(nil)
	return payload, nil
}

// Exchange sends a command and reads its answer
func (d *Device) Exchange(command string) (string, error) {
	if err := d.Send(command); err != nil {
		return "", err
	}
	return d.Read()
}

// drop discards a connection that failed
func (d *Device) drop() {
	if d.conn != nil {
		d.conn.Close()
	}
	d.conn = nil
	d.state = StateIdle
	d.pending = ""
}

// fail records err in statistics and metrics and returns it
func (d *Device) fail(err error) error {
	d.stats.Update(err)
	d.cfg.Metrics.exchangeError(err)
	return err
}
