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
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

// FastSketch partitions a numeric key into a quotient k_q and a remainder
// k_m (key_val = k_q*buckets + k_m), scatters k_q's per-bit contributions
// into a buckets x width table at row k_m XOR h_i(k_q) for each of numHash
// independent hashes, and recovers heavy keys by re-deriving k_q from which
// columns exceed a threshold (spec.md §4.6).
//
// Grounded on original_source/sketch/FastSketch.h. The source's update()
// always reads 8 bytes via memcpy(&key_val, ptr, 8) regardless of key_len,
// reading past the end of shorter keys; this port reads at most 8 bytes and
// explicitly zero-pads the remainder, per spec.md's Design Notes.
type FastSketch struct {
	hashes  *HashFamily
	table   *Table[int64]
	buckets int
	log2b   int
	width   int
	keyBits int
	metrics *Metrics
}

// NewFastSketch builds a FastSketch over keyBits-wide numeric keys (<= 64),
// with numHash independent hashes and numBuckets rows (rounded up to a
// power of two).
func NewFastSketch(b *HashBuilder, numHash, numBuckets, keyBits int) (*FastSketch, error) {
	if numHash <= 0 {
		return nil, invalidCapacity("numHash", numHash)
	}
	if numBuckets <= 0 {
		return nil, invalidCapacity("numBuckets", numBuckets)
	}
	if keyBits <= 0 || keyBits > 64 {
		return nil, invalidCapacity("keyBits", keyBits)
	}
	buckets := int(next2Power(uint64(numBuckets)))
	log2b := bits.TrailingZeros(uint(buckets))
	width := 1 + keyBits - log2b
	if width < 1 {
		return nil, invalidCapacity("width (1+keyBits-log2(buckets))", width)
	}
	hashes, err := b.AwareFamily(numHash)
	if err != nil {
		return nil, err
	}
	table, err := NewTable[int64](buckets, width)
	if err != nil {
		return nil, err
	}
	return &FastSketch{hashes: hashes, table: table, buckets: buckets, log2b: log2b, width: width, keyBits: keyBits, metrics: newMetrics()}, nil
}

// readKeyVal reads up to 8 bytes of key little-endian, zero-padding keys
// shorter than 8 bytes rather than reading past their end.
func readKeyVal(key FlowKey) uint64 {
	var buf [8]byte
	n := len(key)
	if n > 8 {
		n = 8
	}
	copy(buf[:n], key[:n])
	return binary.LittleEndian.Uint64(buf[:])
}

func (f *FastSketch) hashQuotient(i int, kq uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], kq)
	return f.hashes.Sum(i, buf[:])
}

func (f *FastSketch) split(keyVal uint64) (kq, km uint64) {
	km = keyVal & uint64(f.buckets-1)
	kq = keyVal >> uint(f.log2b)
	return
}

// Update folds one (key, value) observation into the table.
func (f *FastSketch) Update(key FlowKey, value int64) {
	kq, km := f.split(readKeyVal(key))
	for i := 0; i < f.hashes.Len(); i++ {
		bucket := int(km ^ (f.hashQuotient(i, kq) % uint64(f.buckets)))
		f.table.Add(bucket, 0, value)
		for j := 1; j < f.width; j++ {
			if (kq>>uint(j-1))&1 == 1 {
				f.table.Add(bucket, j, value)
			}
		}
	}
	f.metrics.add(metricUpdates, 1)
}

// Query returns the minimum, over all hashes and all of k_q's set bits, of
// the corresponding table cell.
func (f *FastSketch) Query(key FlowKey) int64 {
	f.metrics.add(metricQueries, 1)
	kq, km := f.split(readKeyVal(key))
	min := int64(math.MaxInt64)
	for i := 0; i < f.hashes.Len(); i++ {
		bucket := int(km ^ (f.hashQuotient(i, kq) % uint64(f.buckets)))
		if v := f.table.Get(bucket, 0); v < min {
			min = v
		}
		for j := 1; j < f.width; j++ {
			if (kq>>uint(j-1))&1 == 1 {
				if v := f.table.Get(bucket, j); v < min {
					min = v
				}
			}
		}
	}
	return min
}

// Clear re-zeros the table.
func (f *FastSketch) Clear() { f.table.Clear() }

// ByteSize reports the sketch's self-footprint.
func (f *FastSketch) ByteSize() uint64 { return f.table.ByteSize() }

// Metrics returns the sketch's lifetime activity counters.
func (f *FastSketch) Metrics() *Metrics { return f.metrics }

// String renders a human-readable footprint and activity summary.
func (f *FastSketch) String() string {
	return fmt.Sprintf("FastSketch{size=%s, %s}", humanSize(f.ByteSize()), f.metrics)
}

// MergeFrom sums counters from other same-shaped FastSketch instances into
// f, specified as a function over an iterable of read-only references
// (spec.md §9 Design Notes) rather than the source's
// `merge(const FastSketch **fast_arr)` raw pointer array.
func (f *FastSketch) MergeFrom(others ...*FastSketch) error {
	for _, o := range others {
		if o.buckets != f.buckets || o.width != f.width {
			return inconsistentLayers("FastSketch.MergeFrom: shape mismatch")
		}
		for row := 0; row < f.buckets; row++ {
			for col := 0; col < f.width; col++ {
				f.table.Add(row, col, o.table.Get(row, col))
			}
		}
	}
	return nil
}

// DetectAnomaly recovers candidate heavy keys by, for each bucket row,
// guessing every bit of k_q from whether that bit's column and the row's
// base column both exceed theta, then re-deriving a concrete key for each
// hash and re-verifying it against theta.
func (f *FastSketch) DetectAnomaly(theta int64) map[string]int64 {
	f.metrics.add(metricDecodes, 1)
	out := make(map[string]int64)
	for row := 0; row < f.buckets; row++ {
		base := f.table.Get(row, 0)
		if base <= theta {
			continue
		}
		var kq uint64
		consistent := true
		for j := 1; j < f.width; j++ {
			v := f.table.Get(row, j)
			// side-test: if the base exceeds theta, a genuinely-set bit's
			// column must also exceed theta, and a genuinely-clear bit's
			// column must not.
			if v > theta {
				kq |= uint64(1) << uint(j-1)
			} else if v > theta/2 {
				// Ambiguous evidence for this bit: this row cannot yield a
				// confident candidate.
				consistent = false
				f.metrics.add(metricSaturations, 1)
				break
			}
		}
		if !consistent {
			continue
		}
		for i := 0; i < f.hashes.Len(); i++ {
			km := uint64(row) ^ (f.hashQuotient(i, kq) % uint64(f.buckets))
			keyVal := kq*uint64(f.buckets) + km
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], keyVal)
			candidate := FlowKeyFromBytes(buf[:])
			if v := f.Query(candidate); v >= theta {
				out[candidate.String()] = v
			}
		}
	}
	return out
}
