// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads colastat settings from a YAML file and the
// environment. Command-line flags are applied on top by the cmd package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/colastat/pkg/transport"
)

// Config holds all colastat configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Access  AccessConfig  `yaml:"access"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Record  RecordConfig  `yaml:"record"`
	Redis   RedisConfig   `yaml:"redis"`
}

type DeviceConfig struct {
	Transport     string `yaml:"transport"`   // "tcp", "serial" or "websocket"
	Host          string `yaml:"host"`        // tcp
	Port          int    `yaml:"port"`        // tcp
	SerialPort    string `yaml:"serial_port"` // serial, e.g. /dev/ttyUSB0
	BaudRate      int    `yaml:"baud_rate"`   // serial
	URL           string `yaml:"url"`         // websocket
	Username      string `yaml:"username"`    // websocket Basic auth
	SkipSSLVerify bool   `yaml:"skip_ssl_verify"`
	TimeoutMs     int    `yaml:"timeout_ms"` // 0 waits forever
	LocationName  string `yaml:"location_name"`
}

// AccessConfig selects the login level. The password is never read from
// the file; see TIM_PASSWORD.
type AccessConfig struct {
	UserLevel string `yaml:"user_level"` // "02", "03" or "04"; empty skips login
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"` // empty disables /metrics
}

type RecordConfig struct {
	Path       string `yaml:"path"`
	IntervalMs int    `yaml:"interval_ms"` // ms between scans
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty disables publishing
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Transport: string(transport.KindTCP),
			Host:      "169.254.219.5",
			Port:      transport.DefaultTCPPort,
			BaudRate:  transport.DefaultBaudRate,
			TimeoutMs: 5000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Record: RecordConfig{
			Path:       "scans.cbor",
			IntervalMs: 1000,
		},
		Redis: RedisConfig{
			Channel: "colastat:scans",
		},
	}
}

// Load reads config from a YAML file, then applies environment variable
// overrides. An empty path uses the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: TIM_TRANSPORT, TIM_HOST, TIM_PORT, TIM_SERIAL, TIM_BAUD, TIM_URL,
// TIM_TIMEOUT_MS, TIM_LOG_LEVEL, TIM_REDIS_ADDR
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TIM_TRANSPORT"); v != "" {
		c.Device.Transport = v
	}
	if v := os.Getenv("TIM_HOST"); v != "" {
		c.Device.Host = v
	}
	if v := os.Getenv("TIM_SERIAL"); v != "" {
		c.Device.SerialPort = v
	}
	if v := os.Getenv("TIM_URL"); v != "" {
		c.Device.URL = v
	}
	if v := os.Getenv("TIM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TIM_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"TIM_PORT", &c.Device.Port},
		{"TIM_BAUD", &c.Device.BaudRate},
		{"TIM_TIMEOUT_MS", &c.Device.TimeoutMs},
	}
	for _, i := range ints {
		v := os.Getenv(i.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", i.env, v)
		}
		*i.dst = n
	}
	return nil
}

// Validate checks that the selected transport has what it needs
func (c *Config) Validate() error {
	kind, err := transport.ParseKind(c.Device.Transport)
	if err != nil {
		return err
	}

	var errs []error
	switch kind {
	case transport.KindTCP:
		if c.Device.Host == "" {
			errs = append(errs, errors.New("device.host is required for tcp"))
		}
		if c.Device.Port <= 0 || c.Device.Port > 65535 {
			errs = append(errs, fmt.Errorf("device.port %d out of range", c.Device.Port))
		}
	case transport.KindSerial:
		if c.Device.SerialPort == "" {
			errs = append(errs, errors.New("device.serial_port is required for serial"))
		}
		if c.Device.BaudRate <= 0 {
			errs = append(errs, fmt.Errorf("device.baud_rate %d must be positive", c.Device.BaudRate))
		}
	case transport.KindWebSocket:
		if c.Device.URL == "" {
			errs = append(errs, errors.New("device.url is required for websocket"))
		}
	}

	if c.Device.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("device.timeout_ms %d must not be negative", c.Device.TimeoutMs))
	}
	if c.Record.IntervalMs < 0 {
		errs = append(errs, fmt.Errorf("record.interval_ms %d must not be negative", c.Record.IntervalMs))
	}
	return errors.Join(errs...)
}

// Timeout returns the device read timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Device.TimeoutMs) * time.Millisecond
}

// Interval returns the recording interval
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Record.IntervalMs) * time.Millisecond
}

// Marshal returns the config as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
