// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tim

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thermoquad/colastat/pkg/cola"
)

const (
	directionTx = "tx"
	directionRx = "rx"
)

// Metrics holds the Prometheus collectors updated by a Device. A nil
// *Metrics records nothing.
type Metrics struct {
	Telegrams        *prometheus.CounterVec
	ExchangeErrors   *prometheus.CounterVec
	DeviceErrors     *prometheus.CounterVec
	ExchangeDuration prometheus.Histogram
	ScansDecoded     prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg if not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Telegrams: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colastat_telegrams_total",
				Help: "Telegrams sent (tx) and received (rx)",
			},
			[]string{"direction"},
		),
		ExchangeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colastat_exchange_errors_total",
				Help: "Failed exchanges by error kind",
			},
			[]string{"kind"},
		),
		DeviceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colastat_device_errors_total",
				Help: "sFA answers by SOPAS error code",
			},
			[]string{"code"},
		),
		ExchangeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "colastat_exchange_duration_seconds",
			Help:    "Time from sending a command to receiving its answer",
			Buckets: prometheus.DefBuckets,
		}),
		ScansDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colastat_scans_decoded_total",
			Help: "LMDscandata answers decoded",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Telegrams,
			m.ExchangeErrors,
			m.DeviceErrors,
			m.ExchangeDuration,
			m.ScansDecoded,
		)
	}
	return m
}

func (m *Metrics) telegram(direction string) {
	if m == nil {
		return
	}
	m.Telegrams.WithLabelValues(direction).Inc()
}

func (m *Metrics) observe(d time.Duration) {
	if m == nil {
		return
	}
	m.ExchangeDuration.Observe(d.Seconds())
}

func (m *Metrics) exchangeError(err error) {
	if m == nil {
		return
	}
	m.ExchangeErrors.WithLabelValues(ErrorKind(err)).Inc()

	var de *cola.DeviceError
	if errors.As(err, &de) {
		m.DeviceErrors.WithLabelValues(de.Name).Inc()
	}
}

func (m *Metrics) scan() {
	if m == nil {
		return
	}
	m.ScansDecoded.Inc()
}
