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

// SpaceSaving tracks a fixed capacity k of (key, value) pairs. On a miss
// with spare capacity, the key is inserted with its observed value; on a
// miss with the table full, the minimum-value entry is evicted and
// replaced by the incoming key at value (incoming + evicted minimum), which
// is always an overestimate of the true count (spec.md §4.5, §8 property
// 4).
//
// Grounded on original_source/sketch/SpaceSaving.h.
type SpaceSaving struct {
	k       int
	entries map[string]*mgEntry
	metrics *Metrics
}

// NewSpaceSaving builds a SpaceSaving summary of capacity k.
func NewSpaceSaving(k int) (*SpaceSaving, error) {
	if k <= 0 {
		return nil, invalidCapacity("k", k)
	}
	return &SpaceSaving{k: k, entries: make(map[string]*mgEntry, k), metrics: newMetrics()}, nil
}

// Update folds one (key, value) observation into the summary.
func (s *SpaceSaving) Update(key FlowKey, value int64) {
	s.metrics.add(metricUpdates, 1)
	ks := string(key)
	if e, ok := s.entries[ks]; ok {
		e.value += value
		return
	}
	if len(s.entries) < s.k {
		s.entries[ks] = &mgEntry{key: key.Clone(), value: value}
		return
	}
	s.metrics.add(metricSaturations, 1)

	var minKS string
	var min int64 = -1
	for ks2, e := range s.entries {
		if min == -1 || e.value < min {
			min = e.value
			minKS = ks2
		}
	}
	delete(s.entries, minKS)
	s.entries[ks] = &mgEntry{key: key.Clone(), value: value + min}
}

// Query returns the stored value for key, or 0 if it is not tracked.
func (s *SpaceSaving) Query(key FlowKey) int64 {
	s.metrics.add(metricQueries, 1)
	if e, ok := s.entries[string(key)]; ok {
		return e.value
	}
	return 0
}

// Items snapshots every tracked (key, value) pair.
func (s *SpaceSaving) Items() map[string]int64 {
	s.metrics.add(metricDecodes, 1)
	out := make(map[string]int64, len(s.entries))
	for ks, e := range s.entries {
		out[ks] = e.value
	}
	return out
}

// Clear empties the summary.
func (s *SpaceSaving) Clear() {
	s.entries = make(map[string]*mgEntry, s.k)
}

// ByteSize reports the sketch's self-footprint.
func (s *SpaceSaving) ByteSize() uint64 {
	var size uint64
	for _, e := range s.entries {
		size += uint64(len(e.key)) + 8
	}
	return size
}

// Metrics returns the sketch's lifetime activity counters.
func (s *SpaceSaving) Metrics() *Metrics { return s.metrics }

// String renders a human-readable footprint and activity summary.
func (s *SpaceSaving) String() string {
	return fmt.Sprintf("SpaceSaving{size=%s, %s}", humanSize(s.ByteSize()), s.metrics)
}
