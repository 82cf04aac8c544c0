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

// mgEntry is one tracked (key, value) pair.
type mgEntry struct {
	key   FlowKey
	value int64
}

// MisraGries tracks at most k (key, value) pairs and preserves the
// Misra-Gries invariant: the sum of tracked values never exceeds the total
// stream weight, and at most k entries are ever held (spec.md §4.5, §8
// property 3).
//
// Grounded on original_source/sketch/MisraGries.h, including its weighted
// update(key, val) eviction rule (full-mass subtraction when the incoming
// value is below the current minimum, residual-key-insert-after-zeroing
// otherwise).
type MisraGries struct {
	k         int
	entries   map[string]*mgEntry
	totalMass int64
	metrics   *Metrics
}

// NewMisraGries builds a MisraGries summary tracking at most k entries.
func NewMisraGries(k int) (*MisraGries, error) {
	if k <= 0 {
		return nil, invalidCapacity("k", k)
	}
	return &MisraGries{k: k, entries: make(map[string]*mgEntry, k), metrics: newMetrics()}, nil
}

// Update folds one (key, value) observation into the summary.
func (m *MisraGries) Update(key FlowKey, value int64) {
	m.totalMass += value
	m.metrics.add(metricUpdates, 1)
	ks := string(key)
	if e, ok := m.entries[ks]; ok {
		e.value += value
		return
	}
	if len(m.entries) < m.k {
		m.entries[ks] = &mgEntry{key: key.Clone(), value: value}
		return
	}

	// Map is full and key is absent: find the current minimum value.
	m.metrics.add(metricSaturations, 1)
	min := int64(-1)
	for _, e := range m.entries {
		if min == -1 || e.value < min {
			min = e.value
		}
	}

	if value < min {
		// Decrementing every entry by value cannot push any of them
		// below zero, since every entry is >= min > value.
		for _, e := range m.entries {
			e.value -= value
		}
		return
	}

	for ks2, e := range m.entries {
		e.value -= min
		if e.value <= 0 {
			delete(m.entries, ks2)
		}
	}
	m.entries[ks] = &mgEntry{key: key.Clone(), value: value - min}
}

// Query returns the stored value for key, or 0 if it is not tracked.
func (m *MisraGries) Query(key FlowKey) int64 {
	m.metrics.add(metricQueries, 1)
	if e, ok := m.entries[string(key)]; ok {
		return e.value
	}
	return 0
}

// HeavyHittersLB returns every tracked entry whose value is >= theta — a
// lower bound on the true heavy hitter set (every returned key really is
// heavy, but some heavy keys may be missing).
func (m *MisraGries) HeavyHittersLB(theta int64) map[string]int64 {
	m.metrics.add(metricDecodes, 1)
	out := make(map[string]int64)
	for _, e := range m.entries {
		if e.value >= theta {
			out[e.key.String()] = e.value
		}
	}
	return out
}

// HeavyHittersUB returns every tracked entry whose value plus
// total_mass/(k+1) is >= theta — an upper bound on the true heavy hitter
// set (every true heavy key is returned, along with some false positives).
func (m *MisraGries) HeavyHittersUB(theta int64) map[string]int64 {
	m.metrics.add(metricDecodes, 1)
	slack := m.totalMass / int64(m.k+1)
	out := make(map[string]int64)
	for _, e := range m.entries {
		if e.value+slack >= theta {
			out[e.key.String()] = e.value
		}
	}
	return out
}

// Items snapshots every tracked (key, value) pair, for invariant assertions
// ("|entries| <= k", "sum(value) <= total_mass").
func (m *MisraGries) Items() map[string]int64 {
	out := make(map[string]int64, len(m.entries))
	for ks, e := range m.entries {
		out[ks] = e.value
	}
	return out
}

// TotalMass returns the running sum of all update weights ever folded in.
func (m *MisraGries) TotalMass() int64 { return m.totalMass }

// Clear empties the summary.
func (m *MisraGries) Clear() {
	m.entries = make(map[string]*mgEntry, m.k)
	m.totalMass = 0
}

// ByteSize reports the sketch's self-footprint: bounded by k entries, each
// a key plus an int64 value.
func (m *MisraGries) ByteSize() uint64 {
	var size uint64
	for _, e := range m.entries {
		size += uint64(len(e.key)) + 8
	}
	return size
}

// Metrics returns the sketch's lifetime activity counters.
func (m *MisraGries) Metrics() *Metrics { return m.metrics }

// String renders a human-readable footprint and activity summary.
func (m *MisraGries) String() string {
	return fmt.Sprintf("MisraGries{size=%s, %s}", humanSize(m.ByteSize()), m.metrics)
}
