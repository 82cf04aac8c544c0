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

// KarySketch is a depth x width table of signed counters plus a running
// total S. Update increments every row's selected counter by v and S by v.
// Each row's estimator is (counter - S/width) / (1 - 1/width); Query
// returns the absolute median across rows (spec.md §4.2).
//
// Grounded on original_source/sketch/KarySketch.h.
type KarySketch struct {
	hashes  *HashFamily
	table   *Table[int64]
	width   int
	sum     int64
	metrics *Metrics
}

// NewKarySketch builds a depth x width KarySketch. width is rounded up to
// the next prime.
func NewKarySketch(b *HashBuilder, depth, width int) (*KarySketch, error) {
	if depth <= 0 {
		return nil, invalidCapacity("depth", depth)
	}
	if width <= 0 {
		return nil, invalidCapacity("width", width)
	}
	width = NextPrime(width)
	hashes, err := b.AwareFamily(depth)
	if err != nil {
		return nil, err
	}
	table, err := NewTable[int64](depth, width)
	if err != nil {
		return nil, err
	}
	return &KarySketch{hashes: hashes, table: table, width: width, metrics: newMetrics()}, nil
}

func (s *KarySketch) col(row int, key FlowKey) int {
	return int(s.hashes.SumFlowKey(row, key) % uint64(s.width))
}

// Update adds value to every row's selected counter and to the running sum.
func (s *KarySketch) Update(key FlowKey, value int64) {
	for row := 0; row < s.table.Depth(); row++ {
		s.table.Add(row, s.col(row, key), value)
	}
	s.sum += value
	s.metrics.add(metricUpdates, 1)
}

// Query returns the absolute median, across rows, of
// (counter - S/width) / (1 - 1/width).
func (s *KarySketch) Query(key FlowKey) int64 {
	s.metrics.add(metricQueries, 1)
	depth := s.table.Depth()
	w := float64(s.width)
	estimates := make([]int64, depth)
	for row := 0; row < depth; row++ {
		counter := float64(s.table.Get(row, s.col(row, key)))
		sMean := float64(s.sum) / w
		est := (counter - sMean) / (1 - 1/w)
		estimates[row] = int64(est)
	}
	return medianOfMeans(estimates)
}

// MergeFrom sums counters and running sums from other same-shaped,
// same-hash-family KarySketch instances into s (spec.md §9 Design Notes'
// generalized merge-over-an-iterable form).
func (s *KarySketch) MergeFrom(others ...*KarySketch) error {
	for _, o := range others {
		if o.table.Depth() != s.table.Depth() || o.width != s.width {
			return inconsistentLayers("KarySketch.MergeFrom: shape mismatch")
		}
		for row := 0; row < s.table.Depth(); row++ {
			for col := 0; col < s.width; col++ {
				s.table.Add(row, col, o.table.Get(row, col))
			}
		}
		s.sum += o.sum
	}
	return nil
}

// Clear re-zeros every counter and the running sum.
func (s *KarySketch) Clear() {
	s.table.Clear()
	s.sum = 0
}

// ByteSize reports the sketch's self-footprint.
func (s *KarySketch) ByteSize() uint64 { return s.table.ByteSize() + 8 }

// Metrics returns the sketch's lifetime activity counters.
func (s *KarySketch) Metrics() *Metrics { return s.metrics }

// String renders a human-readable footprint and activity summary.
func (s *KarySketch) String() string {
	return fmt.Sprintf("KarySketch{size=%s, %s}", humanSize(s.ByteSize()), s.metrics)
}
