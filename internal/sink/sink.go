// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink stores and forwards decoded scans.
package sink

import (
	"context"
	"errors"

	"github.com/Thermoquad/colastat/pkg/cola"
)

// Sink receives decoded scans
type Sink interface {
	Write(ctx context.Context, r *cola.ScanRecord) error
	Close() error
}

// Multi fans a scan out to several sinks. Every sink is written even when
// an earlier one fails.
type Multi []Sink

func (m Multi) Write(ctx context.Context, r *cola.ScanRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
