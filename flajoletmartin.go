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
	"fmt"
	"math/bits"
)

// FlajoletMartin estimates distinct-key cardinality with depth 64-bit
// bitmaps, one per independent hash. Add sets bit rho(h_i(k))-1 (the
// trailing-zero index) of row i's bitmap. Cardinality returns
// 1.2928 * 2^median, where median is the absolute median across rows of the
// number of set bits in that row's bitmap (spec.md §4.4).
//
// Grounded on original_source/sketch/FMSketch.h. The source's ones()/
// zeroes() helpers count a contiguous run from the low bit rather than a
// full popcount — a leading-run-length statistic, not "the number of set
// bits" — but spec.md's prose is explicit and unambiguous about using the
// set-bit count, so this port follows spec.md rather than the source.
type FlajoletMartin struct {
	hashes  *HashFamily
	bitmaps []uint64
	depth   int
	metrics *Metrics
}

// NewFlajoletMartin builds a FlajoletMartin sketch with depth independent
// hashes and bitmaps.
func NewFlajoletMartin(b *HashBuilder, depth int) (*FlajoletMartin, error) {
	if depth <= 0 {
		return nil, invalidCapacity("depth", depth)
	}
	hashes, err := b.AwareFamily(depth)
	if err != nil {
		return nil, err
	}
	return &FlajoletMartin{hashes: hashes, bitmaps: make([]uint64, depth), depth: depth, metrics: newMetrics()}, nil
}

// Add folds one observation of key into every row's bitmap.
func (f *FlajoletMartin) Add(key FlowKey) {
	for row := 0; row < f.depth; row++ {
		hv := f.hashes.SumFlowKey(row, key)
		idx := bits.TrailingZeros64(hv)
		if idx < 64 {
			f.bitmaps[row] |= uint64(1) << uint(idx)
		} else {
			f.metrics.add(metricSaturations, 1)
		}
	}
	f.metrics.add(metricUpdates, 1)
}

// Cardinality returns the estimated number of distinct keys observed.
func (f *FlajoletMartin) Cardinality() int64 {
	f.metrics.add(metricQueries, 1)
	counts := make([]int64, f.depth)
	for row, bm := range f.bitmaps {
		counts[row] = int64(bits.OnesCount64(bm))
	}
	median := medianOfMeans(counts)
	return int64(1.2928 * pow2(median))
}

func pow2(exp int64) float64 {
	if exp < 0 {
		return 1 / pow2(-exp)
	}
	r := 1.0
	for i := int64(0); i < exp; i++ {
		r *= 2
	}
	return r
}

// Clear re-zeros every bitmap.
func (f *FlajoletMartin) Clear() {
	for i := range f.bitmaps {
		f.bitmaps[i] = 0
	}
}

// ByteSize reports the sketch's self-footprint.
func (f *FlajoletMartin) ByteSize() uint64 { return uint64(f.depth) * 8 }

// Metrics returns the sketch's lifetime activity counters.
func (f *FlajoletMartin) Metrics() *Metrics { return f.metrics }

// String renders a human-readable footprint and activity summary.
func (f *FlajoletMartin) String() string {
	return fmt.Sprintf("FlajoletMartin{size=%s, %s}", humanSize(f.ByteSize()), f.metrics)
}

// Merge folds other's bitmaps into f row-wise by OR, the union operation
// recovered from original_source for distributed cardinality aggregation.
func (f *FlajoletMartin) Merge(other *FlajoletMartin) error {
	if f.depth != other.depth {
		return inconsistentLayers("FlajoletMartin.Merge: depth mismatch")
	}
	for i, bm := range other.bitmaps {
		f.bitmaps[i] |= bm
	}
	return nil
}
