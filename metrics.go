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
	"bytes"
	"fmt"
	"sync/atomic"
)

// metricType enumerates the lifetime counters every sketch tracks, adapted
// from the teacher's metrics.go metricType enum (hit/miss/keyAdd/...) to this
// domain's vocabulary of update/query/saturation/decode events.
type metricType int

const (
	metricUpdates metricType = iota
	metricQueries
	metricSaturations
	metricDecodes
	numMetricTypes
)

func (t metricType) String() string {
	switch t {
	case metricUpdates:
		return "updates"
	case metricQueries:
		return "queries"
	case metricSaturations:
		return "saturations"
	case metricDecodes:
		return "decodes"
	default:
		return "unidentified"
	}
}

// Metrics is a snapshot of lifetime activity counters for one sketch
// instance: how many Update/Insert calls it has absorbed, how many
// Query/Estimate calls it has answered, how many times an internal counter
// saturated (lost precision by hitting its ceiling or floor), and how many
// times a decode/heavy-hitter pass ran. Adapted from the teacher's
// sync/atomic-based Metrics struct (metrics.go); this catalog has no
// per-shard hash-striping requirement the teacher's cache needs to avoid
// false sharing under concurrent Get/Set, so the counters are a flat array
// of plain atomics rather than the teacher's 256-wide per-type slice.
type Metrics struct {
	counters [numMetricTypes]uint64
}

func newMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) add(t metricType, delta uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.counters[t], delta)
}

func (m *Metrics) get(t metricType) uint64 {
	if m == nil {
		return 0
	}
	return atomic.LoadUint64(&m.counters[t])
}

// Updates is the number of Update/Insert calls folded into the sketch.
func (m *Metrics) Updates() uint64 { return m.get(metricUpdates) }

// Queries is the number of Query/Estimate/Cardinality calls answered.
func (m *Metrics) Queries() uint64 { return m.get(metricQueries) }

// Saturations is the number of times an internal counter hit its ceiling
// (or floor, for decrementing counters) and had to drop an update on the
// floor to avoid wraparound.
func (m *Metrics) Saturations() uint64 { return m.get(metricSaturations) }

// DecodeAttempts is the number of heavy-hitter/heavy-changer/flow-decode
// passes run over the sketch's state.
func (m *Metrics) DecodeAttempts() uint64 { return m.get(metricDecodes) }

// Clear resets every counter to zero, for callers that reuse a sketch's
// Metrics handle across Clear() calls on the sketch itself.
func (m *Metrics) Clear() {
	if m == nil {
		return
	}
	for i := range m.counters {
		atomic.StoreUint64(&m.counters[i], 0)
	}
}

// String renders every counter, in the style of the teacher's
// Metrics.String() (metrics.go).
func (m *Metrics) String() string {
	if m == nil {
		return ""
	}
	var buf bytes.Buffer
	for i := metricType(0); i < numMetricTypes; i++ {
		fmt.Fprintf(&buf, "%s: %d ", i, m.get(i))
	}
	return string(bytes.TrimRight(buf.Bytes(), " "))
}
