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

import "fmt"

// CountSketch is a depth x width table of signed counters with a second,
// independent hash family of size depth supplying a deterministic +-1 sign
// per row. Update adds v*sign_i(k) to row i's selected counter; Query
// returns the absolute value of the median (odd depth) or mean of the two
// middle values (even depth) of the per-row estimator
// counter[i][idx]*sign_i(k) (spec.md §4.2).
//
// Grounded on original_source/sketch/CountSketch.h, whose depth*2 hash
// array (bucket hashes and sign hashes interleaved) is split here into two
// independently-seeded HashFamily values for clarity.
type CountSketch struct {
	bucketHashes *HashFamily
	signHashes   *HashFamily
	table        *Table[int64]
	width        int
	metrics      *Metrics
}

// NewCountSketch builds a depth x width CountSketch. width is rounded up
// to the next prime.
func NewCountSketch(b *HashBuilder, depth, width int) (*CountSketch, error) {
	if depth <= 0 {
		return nil, invalidCapacity("depth", depth)
	}
	if width <= 0 {
		return nil, invalidCapacity("width", width)
	}
	width = NextPrime(width)
	bucketHashes, err := b.AwareFamily(depth)
	if err != nil {
		return nil, err
	}
	signHashes, err := b.BOB32Family(depth)
	if err != nil {
		return nil, err
	}
	table, err := NewTable[int64](depth, width)
	if err != nil {
		return nil, err
	}
	return &CountSketch{bucketHashes: bucketHashes, signHashes: signHashes, table: table, width: width, metrics: newMetrics()}, nil
}

func (s *CountSketch) col(row int, key FlowKey) int {
	return int(s.bucketHashes.SumFlowKey(row, key) % uint64(s.width))
}

func (s *CountSketch) sign(row int, key FlowKey) int64 {
	if s.signHashes.SumFlowKey(row, key)&1 == 0 {
		return 1
	}
	return -1
}

// Update adds value*sign_i(k) to row i's selected counter, for every row.
func (s *CountSketch) Update(key FlowKey, value int64) {
	for row := 0; row < s.table.Depth(); row++ {
		s.table.Add(row, s.col(row, key), value*s.sign(row, key))
	}
	s.metrics.add(metricUpdates, 1)
}

// Query returns the median-of-means estimate for key.
func (s *CountSketch) Query(key FlowKey) int64 {
	s.metrics.add(metricQueries, 1)
	depth := s.table.Depth()
	estimates := make([]int64, depth)
	for row := 0; row < depth; row++ {
		estimates[row] = s.table.Get(row, s.col(row, key)) * s.sign(row, key)
	}
	return medianOfMeans(estimates)
}

// MergeFrom sums counters from other same-shaped, same-hash-family
// CountSketch instances into s (spec.md §9 Design Notes' generalized
// merge-over-an-iterable form).
func (s *CountSketch) MergeFrom(others ...*CountSketch) error {
	for _, o := range others {
		if o.table.Depth() != s.table.Depth() || o.width != s.width {
			return inconsistentLayers("CountSketch.MergeFrom: shape mismatch")
		}
		for row := 0; row < s.table.Depth(); row++ {
			for col := 0; col < s.width; col++ {
				s.table.Add(row, col, o.table.Get(row, col))
			}
		}
	}
	return nil
}

// Clear re-zeros every counter.
func (s *CountSketch) Clear() { s.table.Clear() }

// ByteSize reports the sketch's self-footprint.
func (s *CountSketch) ByteSize() uint64 { return s.table.ByteSize() }

// Metrics returns the sketch's lifetime activity counters.
func (s *CountSketch) Metrics() *Metrics { return s.metrics }

// String renders a human-readable footprint and activity summary.
func (s *CountSketch) String() string {
	return fmt.Sprintf("CountSketch{size=%s, %s}", humanSize(s.ByteSize()), s.metrics)
}
