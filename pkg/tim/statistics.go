// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tim

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/colastat/pkg/cola"
)

// Error kinds, used as statistics buckets and metric labels
const (
	KindTimeout    = "timeout"
	KindConnection = "connection"
	KindMalformed  = "malformed"
	KindDevice     = "device"
	KindProtocol   = "protocol"
	KindParse      = "parse"
	KindUnexpected = "unexpected"
	KindOther      = "other"
)

// ErrorKind classifies an error returned by a Device
func ErrorKind(err error) string {
	var (
		te *TimeoutError
		ce *ConnectionError
		mt *MalformedTelegram
		de *cola.DeviceError
		pv *cola.ProtocolViolation
		pe *cola.ParseError
		ue *UnexpectedAnswerError
	)
	switch {
	case errors.As(err, &te):
		return KindTimeout
	case errors.As(err, &ce):
		return KindConnection
	case errors.As(err, &mt):
		return KindMalformed
	case errors.As(err, &de):
		return KindDevice
	case errors.As(err, &pv):
		return KindProtocol
	case errors.As(err, &pe):
		return KindParse
	case errors.As(err, &ue):
		return KindUnexpected
	}
	return KindOther
}

// Counts is a snapshot of the statistics counters
type Counts struct {
	Elapsed    time.Duration
	LastUpdate time.Time

	TotalExchanges     uint64
	Answers            uint64 // Exchanges answered without error
	DeviceErrors       uint64
	ProtocolViolations uint64
	MalformedTelegrams uint64
	Timeouts           uint64
	ConnectionErrors   uint64
	ParseErrors        uint64
	UnexpectedAnswers  uint64
	ScansDecoded       uint64

	// Device errors by SOPAS name
	DeviceErrorCodes map[string]uint64

	// Rates (calculated)
	ExchangeRate float64 // exchanges/sec
	ErrorRate    float64 // errors/sec
}

// Errors returns the total number of failed exchanges
func (c Counts) Errors() uint64 {
	return c.DeviceErrors + c.ProtocolViolations + c.MalformedTelegrams +
		c.Timeouts + c.ConnectionErrors + c.ParseErrors + c.UnexpectedAnswers
}

// Statistics tracks exchange results and error rates. It is safe for
// concurrent use so a UI can read it while a Device is polled.
type Statistics struct {
	mu             sync.Mutex
	startTime      time.Time
	lastUpdateTime time.Time
	counts         Counts
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		startTime:      now,
		lastUpdateTime: now,
		counts:         Counts{DeviceErrorCodes: map[string]uint64{}},
	}
}

// Update records the result of one exchange; nil means a good answer
func (s *Statistics) Update(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUpdateTime = time.Now()

	// Parse and unexpected-answer errors follow an exchange that was
	// already counted as answered
	switch kind := ErrorKind(err); {
	case err == nil:
		s.counts.TotalExchanges++
		s.counts.Answers++
	case kind == KindParse:
		s.counts.ParseErrors++
	case kind == KindUnexpected:
		s.counts.UnexpectedAnswers++
	default:
		s.counts.TotalExchanges++
		switch kind {
		case KindTimeout:
			s.counts.Timeouts++
		case KindConnection:
			s.counts.ConnectionErrors++
		case KindMalformed:
			s.counts.MalformedTelegrams++
		case KindProtocol:
			s.counts.ProtocolViolations++
		case KindDevice:
			s.counts.DeviceErrors++
			var de *cola.DeviceError
			errors.As(err, &de)
			s.counts.DeviceErrorCodes[de.Name]++
		}
	}
}

// RecordScan counts a decoded scan
func (s *Statistics) RecordScan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.ScansDecoded++
}

// Snapshot returns the counters with rates calculated
func (s *Statistics) Snapshot() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counts
	c.DeviceErrorCodes = make(map[string]uint64, len(s.counts.DeviceErrorCodes))
	for k, v := range s.counts.DeviceErrorCodes {
		c.DeviceErrorCodes[k] = v
	}

	c.Elapsed = time.Since(s.startTime)
	c.LastUpdate = s.lastUpdateTime
	if elapsed := c.Elapsed.Seconds(); elapsed > 0 {
		c.ExchangeRate = float64(c.TotalExchanges) / elapsed
		c.ErrorRate = float64(c.Errors()) / elapsed
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	c := s.Snapshot()

	percent := func(n uint64) float64 {
		if c.TotalExchanges == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(c.TotalExchanges)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", c.Elapsed.Seconds())
	fmt.Fprintf(&b, "Exchanges:       %8d\n", c.TotalExchanges)
	fmt.Fprintf(&b, "Answers:         %8d (%.1f%%)\n", c.Answers, percent(c.Answers))

	if c.DeviceErrors > 0 {
		fmt.Fprintf(&b, "Device Errors:   %8d (%.1f%%)\n", c.DeviceErrors, percent(c.DeviceErrors))
		names := make([]string, 0, len(c.DeviceErrorCodes))
		for name := range c.DeviceErrorCodes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %-38s %5d\n", name, c.DeviceErrorCodes[name])
		}
	}
	if c.ProtocolViolations > 0 {
		fmt.Fprintf(&b, "Protocol Errors: %8d (%.1f%%)\n", c.ProtocolViolations, percent(c.ProtocolViolations))
	}
	if c.MalformedTelegrams > 0 {
		fmt.Fprintf(&b, "Malformed:       %8d (%.1f%%)\n", c.MalformedTelegrams, percent(c.MalformedTelegrams))
	}
	if c.Timeouts > 0 {
		fmt.Fprintf(&b, "Timeouts:        %8d (%.1f%%)\n", c.Timeouts, percent(c.Timeouts))
	}
	if c.ConnectionErrors > 0 {
		fmt.Fprintf(&b, "Connection Errs: %8d\n", c.ConnectionErrors)
	}
	if c.ParseErrors > 0 {
		fmt.Fprintf(&b, "Parse Errors:    %8d\n", c.ParseErrors)
	}
	if c.UnexpectedAnswers > 0 {
		fmt.Fprintf(&b, "Unexpected:      %8d\n", c.UnexpectedAnswers)
	}

	fmt.Fprintf(&b, "Scans Decoded:   %8d\n", c.ScansDecoded)
	fmt.Fprintf(&b, "Exchange Rate:   %8.1f /sec\n", c.ExchangeRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	b.WriteString("================================\n")

	return b.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.startTime = now
	s.lastUpdateTime = now
	s.counts = Counts{DeviceErrorCodes: map[string]uint64{}}
}
