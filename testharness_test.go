/*
 * Copyright 2019 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sketches

import (
	"math/rand"
	"testing"
)

// seededBuilder returns a HashBuilder seeded for reproducibility. Each
// _test.go file picks its own seed (or range of seeds, one per case) so
// that two tests never accidentally share a hash family; this just centralizes
// the NewHashBuilderWithSeed call site every test in the package was already
// making individually.
func seededBuilder(seed uint64) *HashBuilder {
	return NewHashBuilderWithSeed(seed)
}

// zipfStream generates a deterministic synthetic stream of n FlowKey
// observations drawn from a Zipfian distribution over [0, numItems), skew s
// (s > 1, the closer to 1 the flatter the tail). This is the heavy-tailed,
// few-flows-dominate traffic shape the whole catalog is built to summarize
// (spec.md §1 Motivation), as opposed to the uniform round-robin streams
// most existing tests feed in by hand.
func zipfStream(t *testing.T, seed uint64, n int, numItems uint64, s float64) []uint32 {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(seed)))
	z := rand.NewZipf(rng, s, 1, numItems-1)
	stream := make([]uint32, n)
	for i := range stream {
		stream[i] = uint32(z.Uint64())
	}
	return stream
}

// zipfStreamKeys is zipfStream rendered as FlowKeys, for sketches whose
// Update/Insert take a FlowKey directly rather than a raw uint32.
func zipfStreamKeys(t *testing.T, seed uint64, n int, numItems uint64, s float64) []FlowKey {
	t.Helper()
	raw := zipfStream(t, seed, n, numItems, s)
	keys := make([]FlowKey, len(raw))
	for i, v := range raw {
		keys[i] = FlowKeyFromUint32(v)
	}
	return keys
}

// streamTruth tallies the exact per-key counts of a synthetic stream, the
// ground truth every sketch test checks its estimates against.
func streamTruth(stream []uint32) map[uint32]int64 {
	truth := make(map[uint32]int64, len(stream))
	for _, v := range stream {
		truth[v]++
	}
	return truth
}
