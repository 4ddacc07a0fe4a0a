// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/colastat/pkg/cola"
)

// Recorder appends scans to a file as a CBOR sequence (RFC 8742): one
// encoded ScanRecord after another with no framing.
type Recorder struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	count int
}

// NewRecorder opens path for appending, creating it if needed
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	return &Recorder{path: path, file: f}, nil
}

func (r *Recorder) Write(_ context.Context, rec *cola.ScanRecord) error {
	data, err := cola.MarshalScanCBOR(rec)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return fmt.Errorf("recorder %s is closed", r.path)
	}
	if _, err := r.file.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.path, err)
	}
	r.count++
	return nil
}

// Count returns the number of scans written since the recorder was opened
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Recorder) Path() string {
	return r.path
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ReadRecording reads every scan from a file written by Recorder. A
// truncated final record is reported as an error along with the scans
// decoded before it.
func ReadRecording(path string) ([]*cola.ScanRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	var records []*cola.ScanRecord
	dec := cbor.NewDecoder(f)
	for {
		var rec cola.ScanRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("record %d: %w", len(records), err)
		}
		records = append(records, &rec)
	}
}
