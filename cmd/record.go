// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/colastat/internal/sink"
	"github.com/Thermoquad/colastat/pkg/cola"
	"github.com/Thermoquad/colastat/pkg/tim"
)

var (
	recordInterval int
	recordOut      string
	recordRedis    bool
	recordCount    int
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Poll scans into a CBOR file and/or Redis",
	Long: `Request a scan every --interval milliseconds and write each decoded scan
to the sinks until interrupted or --count scans are stored.

Sinks:
  --out file   append to a CBOR sequence file (read back with ReadRecording)
  --redis      publish JSON on the configured Redis channel and keep the
               newest 1000 scans in colastat:<serial>:scans

A lost connection is reopened on the next tick and the login and location
name are applied again. Combine with --metrics-addr to watch exchange
counters while recording.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().IntVar(&recordInterval, "interval", 1000, "Milliseconds between scans")
	recordCmd.Flags().StringVar(&recordOut, "out", "", "CBOR output file (default from config)")
	recordCmd.Flags().BoolVar(&recordRedis, "redis", false, "Publish scans to Redis")
	recordCmd.Flags().IntVar(&recordCount, "count", 0, "Stop after this many scans (0 runs until interrupted)")
}

// scanSource is the part of tim.Device the recorder needs
type scanSource interface {
	Reconnect(ctx context.Context) error
	IsOpen() bool
	Scan() (*cola.ScanRecord, error)
}

var _ scanSource = (*tim.Device)(nil)

// recordLoop polls src every interval and writes scans to out. It returns
// the number of scans stored when ctx is done or count is reached.
func recordLoop(ctx context.Context, src scanSource, out sink.Sink, interval time.Duration, count int, log logrus.FieldLogger) int {
	ticker := time.NewTicker(max(interval, time.Millisecond))
	defer ticker.Stop()

	stored := 0
	for {
		if !src.IsOpen() {
			if err := src.Reconnect(ctx); err != nil {
				log.WithError(err).Warn("Reconnect failed")
			} else {
				log.Info("Reconnected")
			}
		}

		if src.IsOpen() {
			scan, err := src.Scan()
			if err != nil {
				log.WithError(err).Warn("Scan failed")
			} else if err := out.Write(ctx, scan); err != nil {
				log.WithError(err).Error("Failed to store scan")
			} else {
				stored++
				log.WithFields(logrus.Fields{
					"scan":    scan.ScanCounter,
					"samples": sampleCount(scan),
				}).Debug("Stored scan")
			}
		}

		if count > 0 && stored >= count {
			return stored
		}

		select {
		case <-ctx.Done():
			return stored
		case <-ticker.C:
		}
	}
}

func sampleCount(r *cola.ScanRecord) int {
	if r.Distance == nil {
		return 0
	}
	return r.Distance.SampleCount
}

func openSinks(ctx context.Context) (sink.Multi, error) {
	var sinks sink.Multi

	path := recordOut
	if path == "" && !recordRedis {
		path = cfg.Record.Path
	}
	if path != "" {
		rec, err := sink.NewRecorder(path)
		if err != nil {
			return nil, err
		}
		log.WithField("path", path).Info("Recording scans")
		sinks = append(sinks, rec)
	}

	if recordRedis {
		if cfg.Redis.Addr == "" {
			sinks.Close()
			return nil, fmt.Errorf("--redis needs redis.addr in the config or TIM_REDIS_ADDR")
		}
		pub, err := sink.NewRedisPublisher(ctx, sink.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, log)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, pub)
	}
	return sinks, nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("interval") {
		cfg.Record.IntervalMs = recordInterval
	}

	sinks, err := openSinks(cmd.Context())
	if err != nil {
		return err
	}
	defer sinks.Close()

	dev, connInfo, err := openConfigured(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	log.WithFields(logrus.Fields{
		"connection": connInfo,
		"interval":   cfg.Interval(),
	}).Info("Recording started, press Ctrl+C to stop")

	stored := recordLoop(cmd.Context(), dev, sinks, cfg.Interval(), recordCount, log)

	log.WithField("scans", stored).Info("Recording stopped")
	fmt.Print(dev.Statistics().String())
	return nil
}
