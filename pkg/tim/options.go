// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tim

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/colastat/pkg/transport"
)

// Config holds the device configuration.
type Config struct {
	// Dialer opens the transport. Default is TCP.
	Dialer transport.Dialer

	// Timeout bounds every Read. Zero blocks until data arrives.
	Timeout time.Duration

	// Logger receives debug logs per telegram (optional)
	Logger logrus.FieldLogger

	// Metrics records Prometheus metrics (optional)
	Metrics *Metrics

	// Statistics accumulates exchange counters. A fresh tracker is used if nil.
	Statistics *Statistics
}

func defaultConfig() Config {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return Config{
		Dialer: transport.TCPDialer{},
		Logger: log,
	}
}

// Option is a functional option for configuring a Device.
type Option func(*Config)

// WithTimeout sets the read timeout.
//
// Example:
//
//	dev := tim.New("169.254.219.5:2111", tim.WithTimeout(2*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithLogger sets the logger for telegram traffic.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithDialer selects the transport, e.g. transport.SerialDialer{BaudRate: 57600}.
func WithDialer(d transport.Dialer) Option {
	return func(c *Config) {
		if d != nil {
			c.Dialer = d
		}
	}
}

// WithMetrics records exchanges in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithStatistics shares a statistics tracker, e.g. across reconnects.
func WithStatistics(s *Statistics) Option {
	return func(c *Config) {
		c.Statistics = s
	}
}
