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

// CountMin is a depth x width table of non-negative counters. Update adds v
// to the counter at h_i(k) mod width in every row; Query returns the
// minimum across rows, which is a one-sided overestimate of the true count
// (spec.md §4.2, §8 property 1).
//
// Grounded on the teacher's cmSketch/CM (sketch.go, bloom.go) for the flat
// row-major table shape, generalized from fixed 4-bit saturating counters
// to a plain signed Table[int64] (this catalog's CountMin must support
// weighted and, via MergeFrom, summed updates well past 15) and from a
// single fnv.New64a row to an injected HashFamily of depth independent
// hashes (original_source/sketch/CMSketch.h).
type CountMin struct {
	hashes  *HashFamily
	table   *Table[int64]
	width   int
	metrics *Metrics
}

// NewCountMin builds a depth x width CountMin sketch. width is rounded up
// to the next prime, per spec.md §3.3.
func NewCountMin(b *HashBuilder, depth, width int) (*CountMin, error) {
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
	return &CountMin{hashes: hashes, table: table, width: width, metrics: newMetrics()}, nil
}

func (s *CountMin) col(row int, key FlowKey) int {
	return int(s.hashes.SumFlowKey(row, key) % uint64(s.width))
}

// Update adds value to the counter selected by each row's hash.
func (s *CountMin) Update(key FlowKey, value int64) {
	for row := 0; row < s.table.Depth(); row++ {
		s.table.Add(row, s.col(row, key), value)
	}
	s.metrics.add(metricUpdates, 1)
}

// Query returns the minimum counter across rows for key.
func (s *CountMin) Query(key FlowKey) int64 {
	s.metrics.add(metricQueries, 1)
	min := s.table.Get(0, s.col(0, key))
	for row := 1; row < s.table.Depth(); row++ {
		if v := s.table.Get(row, s.col(row, key)); v < min {
			min = v
		}
	}
	return min
}

// Clear re-zeros every counter.
func (s *CountMin) Clear() { s.table.Clear() }

// ByteSize reports the sketch's self-footprint.
func (s *CountMin) ByteSize() uint64 { return s.table.ByteSize() }

// Metrics returns the sketch's lifetime activity counters.
func (s *CountMin) Metrics() *Metrics { return s.metrics }

// String renders a human-readable footprint and activity summary.
func (s *CountMin) String() string {
	return fmt.Sprintf("CountMin{size=%s, %s}", humanSize(s.ByteSize()), s.metrics)
}

// MergeFrom sums counters from other CountMin sketches of identical shape
// into s. Specified as a function over an iterable of read-only references
// (spec.md §9 Design Notes), the corrected form of
// original_source/sketch/FastSketch.h's `merge(const FastSketch **)` raw
// pointer array.
func (s *CountMin) MergeFrom(others ...*CountMin) error {
	for _, o := range others {
		if o.table.Depth() != s.table.Depth() || o.width != s.width {
			return inconsistentLayers("CountMin.MergeFrom: shape mismatch")
		}
		for row := 0; row < s.table.Depth(); row++ {
			for col := 0; col < s.width; col++ {
				s.table.Add(row, col, o.table.Get(row, col))
			}
		}
	}
	return nil
}

// dump renders every row of the table, one per line, for test diagnostics
// only — never called from a production code path. Mirrors the teacher's
// cmRow.string() debug helper.
func (s *CountMin) dump() string {
	out := ""
	for row := 0; row < s.table.Depth(); row++ {
		out += fmt.Sprintf("%v\n", s.table.Row(row))
	}
	return out
}

// ConservativeUpdate has the same shape as CountMin, but raises every
// touched counter only up to max(current, min+value) instead of
// unconditionally adding value, which reduces overestimation for
// non-heavy flows (spec.md §4.2, §8 property 2: it is always <= the
// CountMin estimate for the same history and seed).
//
// Grounded on original_source/sketch/CUSketch.h.
type ConservativeUpdate struct {
	hashes  *HashFamily
	table   *Table[int64]
	width   int
	metrics *Metrics
}

// NewConservativeUpdate builds a depth x width ConservativeUpdate sketch.
func NewConservativeUpdate(b *HashBuilder, depth, width int) (*ConservativeUpdate, error) {
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
	return &ConservativeUpdate{hashes: hashes, table: table, width: width, metrics: newMetrics()}, nil
}

func (s *ConservativeUpdate) col(row int, key FlowKey) int {
	return int(s.hashes.SumFlowKey(row, key) % uint64(s.width))
}

// Update raises every touched counter to max(current, min+value).
func (s *ConservativeUpdate) Update(key FlowKey, value int64) {
	depth := s.table.Depth()
	cols := make([]int, depth)
	min := int64(-1)
	for row := 0; row < depth; row++ {
		cols[row] = s.col(row, key)
		v := s.table.Get(row, cols[row])
		if min == -1 || v < min {
			min = v
		}
	}
	target := min + value
	for row := 0; row < depth; row++ {
		if cur := s.table.Get(row, cols[row]); cur < target {
			s.table.Set(row, cols[row], target)
		}
	}
	s.metrics.add(metricUpdates, 1)
}

// Query returns the minimum counter across rows for key, identical to
// CountMin.
func (s *ConservativeUpdate) Query(key FlowKey) int64 {
	s.metrics.add(metricQueries, 1)
	min := s.table.Get(0, s.col(0, key))
	for row := 1; row < s.table.Depth(); row++ {
		if v := s.table.Get(row, s.col(row, key)); v < min {
			min = v
		}
	}
	return min
}

// Clear re-zeros every counter.
func (s *ConservativeUpdate) Clear() { s.table.Clear() }

// ByteSize reports the sketch's self-footprint.
func (s *ConservativeUpdate) ByteSize() uint64 { return s.table.ByteSize() }

// Metrics returns the sketch's lifetime activity counters.
func (s *ConservativeUpdate) Metrics() *Metrics { return s.metrics }

// String renders a human-readable footprint and activity summary.
func (s *ConservativeUpdate) String() string {
	return fmt.Sprintf("ConservativeUpdate{size=%s, %s}", humanSize(s.ByteSize()), s.metrics)
}

// MergeFrom sums counters from other ConservativeUpdate sketches of
// identical shape into s, matching CountMin.MergeFrom (spec.md §9 Design
// Notes; original_source/sketch/FastSketch.h's merge()).
func (s *ConservativeUpdate) MergeFrom(others ...*ConservativeUpdate) error {
	for _, o := range others {
		if o.table.Depth() != s.table.Depth() || o.width != s.width {
			return inconsistentLayers("ConservativeUpdate.MergeFrom: shape mismatch")
		}
		for row := 0; row < s.table.Depth(); row++ {
			for col := 0; col < s.width; col++ {
				s.table.Add(row, col, o.table.Get(row, col))
			}
		}
	}
	return nil
}
