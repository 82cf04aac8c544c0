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

// lcEntry is one tracked (key, frequency, error-bound) triple.
type lcEntry struct {
	key   FlowKey
	freq  int64
	error int64
}

// LossyCount is the Lossy Counting algorithm: a table of (key, freq, error)
// triples with width = ceil(1/epsilon) logical buckets. Every update adds
// to a running counter; once that counter reaches width, the logical
// bucket boundary advances and every entry whose freq+error has fallen at
// or below the new boundary is dropped (spec.md §4.5).
//
// Grounded on original_source/sketch/LossyCount.h, whose bucket_current_
// advance is `bucket_current_ += count_ / width_` rather than a flat +1 —
// meaning a single heavily-weighted update can advance the boundary by more
// than one bucket — which this port preserves rather than the simpler
// flat-advance reading of spec.md's prose (spec.md does not actually
// specify the advance amount, only that it "advances").
type LossyCount struct {
	width         int64
	count         int64
	bucketCurrent int64
	entries       map[string]*lcEntry
	metrics       *Metrics
}

// NewLossyCount builds a LossyCount summary with error bound epsilon
// (width = ceil(1/epsilon)).
func NewLossyCount(epsilon float64) (*LossyCount, error) {
	if epsilon <= 0 || epsilon >= 1 {
		return nil, invalidCapacity("epsilon", epsilon)
	}
	width := int64(1/epsilon + 0.999999)
	if width < 1 {
		width = 1
	}
	return &LossyCount{width: width, bucketCurrent: 1, entries: make(map[string]*lcEntry), metrics: newMetrics()}, nil
}

// Update folds one (key, value) observation into the summary.
func (l *LossyCount) Update(key FlowKey, value int64) {
	l.metrics.add(metricUpdates, 1)
	l.count += value
	ks := string(key)
	if e, ok := l.entries[ks]; ok {
		e.freq += value
	} else {
		l.entries[ks] = &lcEntry{key: key.Clone(), freq: value, error: l.bucketCurrent - 1}
	}

	if l.count >= l.width {
		l.bucketCurrent += l.count / l.width
		l.count = l.count % l.width
		for ks2, e := range l.entries {
			if e.freq+e.error <= l.bucketCurrent {
				delete(l.entries, ks2)
				l.metrics.add(metricSaturations, 1)
			}
		}
	}
}

// Query returns the stored frequency for key, or 0 if it has been dropped
// or never seen.
func (l *LossyCount) Query(key FlowKey) int64 {
	l.metrics.add(metricQueries, 1)
	if e, ok := l.entries[string(key)]; ok {
		return e.freq
	}
	return 0
}

// Items snapshots every tracked (key, freq) pair still retained.
func (l *LossyCount) Items() map[string]int64 {
	l.metrics.add(metricDecodes, 1)
	out := make(map[string]int64, len(l.entries))
	for ks, e := range l.entries {
		out[ks] = e.freq
	}
	return out
}

// Clear empties the summary and resets the bucket state machine, the
// general form of spec.md §4.9's "state (bucket_current_, count_ mod
// width) resets on clear".
func (l *LossyCount) Clear() {
	l.count = 0
	l.bucketCurrent = 1
	l.entries = make(map[string]*lcEntry)
}

// ByteSize reports the sketch's self-footprint.
func (l *LossyCount) ByteSize() uint64 {
	var size uint64
	for _, e := range l.entries {
		size += uint64(len(e.key)) + 16
	}
	return size
}

// Metrics returns the sketch's lifetime activity counters.
func (l *LossyCount) Metrics() *Metrics { return l.metrics }

// String renders a human-readable footprint and activity summary.
func (l *LossyCount) String() string {
	return fmt.Sprintf("LossyCount{size=%s, %s}", humanSize(l.ByteSize()), l.metrics)
}
