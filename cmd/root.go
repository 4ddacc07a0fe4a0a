// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/colastat/internal/config"
	"github.com/Thermoquad/colastat/pkg/tim"
)

var (
	configPath string

	// TCP connection flags
	host    string
	tcpPort int

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	timeoutSecs float64
	logLevel    string
	logFormat   string
	metricsAddr string
)

var (
	cfg      *config.Config
	log      = logrus.New()
	registry = prometheus.NewRegistry()
	metrics  = tim.NewMetrics(registry)
)

var rootCmd = &cobra.Command{
	Use:   "colastat",
	Short: "SICK TiM CoLa-A client",
	Long: `Colastat - A CLI tool for talking to SICK TiM laser rangefinders over CoLa-A.

Sends telegrams, decodes LMDscandata scans, records them to CBOR files or
Redis, and monitors a device in a terminal UI.

Connection modes:
  TCP:       --host 169.254.219.5 [--tcp-port 2111]   (default)
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings can also come from a YAML file (--config) and TIM_* environment
variables; flags win over both.

Passwords are never taken from flags. The access mode password is read from
TIM_PASSWORD and the WebSocket password from TIM_WS_PASSWORD, or prompted
interactively if not set.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")

	// TCP connection flags
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Device IP address or hostname")
	rootCmd.PersistentFlags().IntVar(&tcpPort, "tcp-port", 2111, "CoLa-A TCP port")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().Float64Var(&timeoutSecs, "timeout", 5, "Seconds to wait for an answer (0 waits forever)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9110")
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig builds the effective config: defaults, then file, then
// environment, then flags the user set explicitly
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, c)
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	setupLogger(cfg.Log)
	startMetricsServer(cfg.Metrics.ListenAddr)
	return nil
}

func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()

	// Connection flags select their transport
	if flags.Changed("host") {
		c.Device.Transport = "tcp"
		c.Device.Host = host
	}
	if flags.Changed("tcp-port") {
		c.Device.Port = tcpPort
	}
	if flags.Changed("port") {
		c.Device.Transport = "serial"
		c.Device.SerialPort = portName
	}
	if flags.Changed("baud") {
		c.Device.BaudRate = baudRate
	}
	if flags.Changed("url") {
		c.Device.Transport = "websocket"
		c.Device.URL = wsURL
	}
	if flags.Changed("username") {
		c.Device.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		c.Device.SkipSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("timeout") {
		c.Device.TimeoutMs = int(timeoutSecs * 1000)
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		c.Log.Format = logFormat
	}
	if flags.Changed("metrics-addr") {
		c.Metrics.ListenAddr = metricsAddr
	}
}

func setupLogger(c config.LogConfig) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
}

// startMetricsServer serves /metrics in the background until the process
// exits
func startMetricsServer(addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()
}
