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

// Mrac is a single row of width non-negative counters recording
// multiplicity per bucket (Multi-Resolution Array of Counters). It does not
// answer per-key queries with any accuracy better than a one-hash CountMin
// row; its purpose is EstimateDistribution, a biased but sublinear
// approximation to the flow-size distribution (spec.md §4.2).
//
// Grounded on original_source/sketch/Mrac.h. The source's
// estimateDistribution() normalizes by the running total of all updates
// (sum_); spec.md's prose instead describes "the empirical fraction of
// buckets with that value", i.e. normalizing by the bucket count (width).
// This port follows spec.md's literal text — see DESIGN.md's Open Question
// resolution — since the bucket-count normalization is what makes the
// result a probability distribution over *bucket contents* rather than
// over *update mass*.
type Mrac struct {
	hash    Hash
	table   *Table[int64]
	width   int
	metrics *Metrics
}

// NewMrac builds a single-row Mrac sketch of the given width, rounded up to
// the next prime.
func NewMrac(b *HashBuilder, width int) (*Mrac, error) {
	if width <= 0 {
		return nil, invalidCapacity("width", width)
	}
	width = NextPrime(width)
	table, err := NewTable[int64](1, width)
	if err != nil {
		return nil, err
	}
	return &Mrac{hash: b.Aware(), table: table, width: width, metrics: newMetrics()}, nil
}

func (s *Mrac) col(key FlowKey) int {
	return int(SumFlowKey(s.hash, key) % uint64(s.width))
}

// Update adds value to key's selected bucket.
func (s *Mrac) Update(key FlowKey, value int64) {
	s.table.Add(0, s.col(key), value)
	s.metrics.add(metricUpdates, 1)
}

// Query returns the selected bucket's raw counter value (the only estimate
// a single hash row can offer for an individual key).
func (s *Mrac) Query(key FlowKey) int64 {
	s.metrics.add(metricQueries, 1)
	return s.table.Get(0, s.col(key))
}

// MergeFrom sums counters from other same-width, same-hash Mrac instances
// into s (spec.md §9 Design Notes' generalized merge-over-an-iterable form).
func (s *Mrac) MergeFrom(others ...*Mrac) error {
	for _, o := range others {
		if o.width != s.width {
			return inconsistentLayers("Mrac.MergeFrom: shape mismatch")
		}
		for col := 0; col < s.width; col++ {
			s.table.Add(0, col, o.table.Get(0, col))
		}
	}
	return nil
}

// Clear re-zeros every bucket.
func (s *Mrac) Clear() { s.table.Clear() }

// ByteSize reports the sketch's self-footprint.
func (s *Mrac) ByteSize() uint64 { return s.table.ByteSize() }

// Metrics returns the sketch's lifetime activity counters.
func (s *Mrac) Metrics() *Metrics { return s.metrics }

// String renders a human-readable footprint and activity summary.
func (s *Mrac) String() string {
	return fmt.Sprintf("Mrac{size=%s, %s}", humanSize(s.ByteSize()), s.metrics)
}

// EstimateDistribution returns a mapping from observed counter values to
// the empirical fraction of buckets holding that value.
func (s *Mrac) EstimateDistribution() map[int64]float64 {
	s.metrics.add(metricDecodes, 1)
	row := s.table.Row(0)
	counts := make(map[int64]int)
	for _, v := range row {
		counts[v]++
	}
	dist := make(map[int64]float64, len(counts))
	for v, n := range counts {
		dist[v] = float64(n) / float64(s.width)
	}
	return dist
}
