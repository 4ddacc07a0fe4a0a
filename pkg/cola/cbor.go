// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode writes canonical CBOR so identical scans encode identically
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cola: cbor encode mode: %v", err))
	}
	return em
}()

// MarshalScanCBOR encodes a scan record as a CBOR map keyed by field name
func MarshalScanCBOR(r *ScanRecord) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil scan record")
	}
	data, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scan record: %w", err)
	}
	return data, nil
}

// UnmarshalScanCBOR decodes a scan record written by MarshalScanCBOR
func UnmarshalScanCBOR(data []byte) (*ScanRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}
	var r ScanRecord
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return &r, nil
}
