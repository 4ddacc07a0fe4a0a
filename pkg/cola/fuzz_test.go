// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomToken returns a short token of printable ASCII without spaces
func randomToken(rng *rand.Rand) string {
	const alphabet = "0123456789ABCDEFabcdefsRNAWMFDISTSI+-"
	n := rng.Intn(10) + 1
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}

// TestFuzzUnframe_RandomBytes feeds random bytes to Unframe and verifies it
// never panics and only returns the documented error types
func TestFuzzUnframe_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(256))
		rng.Read(data)
		if len(data) > 2 && rng.Intn(2) == 0 {
			data[0] = STX
			data[len(data)-1] = ETX
		}

		_, err := Unframe(data)
		if err == nil {
			continue
		}
		var fe *FramingError
		var ee *EncodingError
		if !errors.As(err, &fe) && !errors.As(err, &ee) {
			t.Errorf("Round %d: unexpected error type %T: %v", i, err, err)
		}
	}
}

// TestFuzzFrame_RoundTrip frames random ASCII commands and unframes them
func TestFuzzFrame_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		tokens := make([]string, rng.Intn(8))
		for j := range tokens {
			tokens[j] = randomToken(rng)
		}
		command := strings.Join(tokens, " ")

		framed := Frame(command)
		payload, err := Unframe(framed[:len(framed)-1])
		if err != nil {
			t.Errorf("Round %d: unexpected error: %v", i, err)
			continue
		}
		if payload != command {
			t.Errorf("Round %d: round trip mismatch: %q != %q", i, payload, command)
		}
	}
}

// TestFuzzClassify_AllCodes verifies every table index and every out-of-range
// index up to 0xFFF
func TestFuzzClassify_AllCodes(t *testing.T) {
	for i := 0; i <= 0xFFF; i++ {
		payload := fmt.Sprintf("sFA %X", i)
		_, err := Classify(payload)

		var de *DeviceError
		var pv *ProtocolViolation
		if i < ErrorCodeCount {
			if !errors.As(err, &de) || int(de.Code) != i {
				t.Errorf("%q: expected DeviceError %d, got %v", payload, i, err)
			}
		} else if !errors.As(err, &pv) {
			t.Errorf("%q: expected ProtocolViolation, got %v", payload, err)
		}
	}
}

// TestFuzzDecodeScan_RandomTokens feeds random token lists to the scan
// decoder; it must either return a record or a ParseError
func TestFuzzDecodeScan_RandomTokens(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		tokens := make([]string, rng.Intn(48))
		for j := range tokens {
			tokens[j] = randomToken(rng)
		}

		r, err := DecodeScan(tokens)
		if err != nil {
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("Round %d: unexpected error type %T: %v", i, err, err)
			}
			if r != nil {
				t.Errorf("Round %d: record returned with error", i)
			}
		}
	}
}

// TestFuzzDecodeScan_CorruptedScans takes a valid scan and replaces one token
// with random text
func TestFuzzDecodeScan_CorruptedScans(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	valid := tokensOf(scanHeader, distBlock, rssiBlock)
	for i := 0; i < rounds; i++ {
		tokens := append([]string(nil), valid...)
		tokens[rng.Intn(len(tokens))] = randomToken(rng)
		if rng.Intn(4) == 0 {
			tokens = tokens[:rng.Intn(len(tokens))]
		}

		r, err := DecodeScan(tokens)
		if err != nil {
			continue
		}
		if r.Distance != nil && r.Distance.End > len(tokens) {
			t.Errorf("Round %d: distance end %d beyond %d tokens", i, r.Distance.End, len(tokens))
		}
		if r.RSSI != nil && r.RSSI.End > len(tokens) {
			t.Errorf("Round %d: rssi end %d beyond %d tokens", i, r.RSSI.End, len(tokens))
		}
	}
}
