// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/colastat/pkg/tim"
)

var monitorInterval int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring a TiM",
	Long: `Monitor a TiM via an interactive terminal UI.

Features:
  - Scan polling with the latest scan summary
  - Exchange statistics (answers, device errors, timeouts, rates)
  - Quick commands (device state, firmware, start/stop measurement, ...)
  - Raw telegram input with the decoded answer
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the quick command list and the telegram input.
Space pauses scan polling.

Supports TCP, serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorInterval, "interval", 500, "Milliseconds between scans")
}

// workerRequest is sent from the TUI to the device worker
type workerRequest struct {
	telegram string
	pause    bool // Toggle scan polling instead of sending
}

// deviceWorker owns the device. All exchanges happen on its goroutine so
// the TUI never blocks on the connection.
type deviceWorker struct {
	dev      *tim.Device
	interval time.Duration
	requests chan workerRequest
	send     func(tea.Msg)
}

func newDeviceWorker(dev *tim.Device, interval time.Duration, send func(tea.Msg)) *deviceWorker {
	return &deviceWorker{
		dev:      dev,
		interval: max(interval, 50*time.Millisecond),
		requests: make(chan workerRequest, 8),
		send:     send,
	}
}

// run polls scans and serves requests until ctx is done
func (w *deviceWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	paused := false
	lost := false
	for {
		select {
		case <-ctx.Done():
			return

		case req := <-w.requests:
			if req.pause {
				paused = !paused
				w.send(pausedMsg{paused: paused})
				continue
			}
			start := time.Now()
			answer, err := w.dev.Exchange(req.telegram)
			w.send(answerMsg{telegram: req.telegram, answer: answer, err: err, took: time.Since(start)})
			lost = w.checkConnection(err, lost)

		case <-ticker.C:
			if lost {
				if err := w.dev.Reconnect(ctx); err != nil {
					continue
				}
				lost = false
				w.send(reconnectedMsg{})
			}
			if paused {
				continue
			}
			start := time.Now()
			scan, err := w.dev.Scan()
			w.send(scanMsg{scan: scan, err: err, at: time.Now(), took: time.Since(start)})
			lost = w.checkConnection(err, lost)
		}
	}
}

func (w *deviceWorker) checkConnection(err error, lost bool) bool {
	if err == nil || lost || w.dev.IsOpen() {
		return lost
	}
	w.send(connectionLostMsg{err: err})
	return true
}

// submit queues a request without blocking the TUI
func (w *deviceWorker) submit(req workerRequest) bool {
	select {
	case w.requests <- req:
		return true
	default:
		return false
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := openConfigured(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	// Logs would tear the alt screen
	log.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var p *tea.Program
	worker := newDeviceWorker(dev, time.Duration(monitorInterval)*time.Millisecond, func(msg tea.Msg) { p.Send(msg) })

	m := initialMonitorModel(connInfo, dev.Statistics(), worker.submit)
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go worker.run(ctx)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
