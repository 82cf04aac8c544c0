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

// Package sketches implements a catalog of streaming traffic sketches:
// compact, sublinear data structures that summarize an unbounded stream of
// keyed updates (FlowKey, value) and answer approximate queries about the
// stream — per-flow counts, cardinalities, heavy hitters, heavy changers,
// and flow-size distributions.
package sketches

import "github.com/dustin/go-humanize"

// Sketch is the common surface of the catalog's per-key frequency sketches.
// Bloom, CountingBloom, HyperLogLog, FlajoletMartin, LDSketch,
// CounterBraids, FlowRadar and TwoLevel expose their own method shapes and
// do not implement it.
// Update and Query are keyed by FlowKey rather than arbitrary strings,
// since every sketch here summarizes a stream of flow observations rather
// than a cache's string key space.
type Sketch interface {
	// Update folds one (key, value) observation into the sketch.
	Update(key FlowKey, value int64)
	// Query returns the sketch's current estimate for key.
	Query(key FlowKey) int64
	// Clear returns the sketch to the state right after construction,
	// without reallocating and without touching its hash functions.
	Clear()
	// ByteSize reports the sketch's self-reported memory footprint.
	ByteSize() uint64
}

// humanSize renders a byte count the way the rest of the catalog's
// footprint reporting does, reusing the teacher's own choice of
// github.com/dustin/go-humanize (contrib/demo, z/btree_test.go) rather than
// hand-rolling a KiB/MiB formatter.
func humanSize(n uint64) string {
	return humanize.IBytes(n)
}

// absInt64 returns the absolute value of v, used throughout the signed
// estimators (CountSketch, Kary, NitroSketch, and the heavy_changers
// routines of Deltoid/LDSketch/MVSketch).
func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// medianOfMeans returns the per-row estimator's robust center: the absolute
// median for odd depth, or the absolute mean of the two middle values for
// even depth (spec.md §4.2 CountSketch; also used by Kary and
// FlajoletMartin). values is sorted in place.
func medianOfMeans(values []int64) int64 {
	sortInt64s(values)
	n := len(values)
	if n%2 == 1 {
		return absInt64(values[n/2])
	}
	a, b := values[n/2-1], values[n/2]
	return absInt64((a + b) / 2)
}

func sortInt64s(values []int64) {
	// insertion sort: depth is always small (a handful of rows), so this
	// avoids pulling in sort.Slice's reflection-based comparator for a
	// hot path called once per query.
	for i := 1; i < len(values); i++ {
		v := values[i]
		j := i - 1
		for j >= 0 && values[j] > v {
			values[j+1] = values[j]
			j--
		}
		values[j+1] = v
	}
}
