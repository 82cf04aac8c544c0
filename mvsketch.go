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
	"math"
)

// mvBucket is one cell of an MVSketch: a running sum V, a candidate key K,
// and that candidate's vote counter C. C is a majority-vote tally, not a
// plain counter — it can only ever be nonnegative (spec.md §8 property 7).
type mvBucket struct {
	v, c int64
	k    FlowKey
}

// MVSketch tracks, per bucket, a majority-vote candidate key alongside the
// bucket's total weight. update raises the bucket's vote for the incoming
// key and lowers it for every other key that has ever landed there; if the
// vote goes negative the candidate flips to the incoming key (spec.md
// §4.6).
//
// Grounded on original_source/sketch/MVSketch.h.
type MVSketch struct {
	hashes  *HashFamily
	depth   int
	width   int
	table   []mvBucket
	metrics *Metrics
}

// NewMVSketch builds a depth x width MVSketch. width is rounded up to the
// next prime.
func NewMVSketch(b *HashBuilder, depth, width int) (*MVSketch, error) {
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
	return &MVSketch{hashes: hashes, depth: depth, width: width, table: make([]mvBucket, depth*width), metrics: newMetrics()}, nil
}

func (s *MVSketch) index(row int, key FlowKey) int {
	return row*s.width + int(s.hashes.SumFlowKey(row, key)%uint64(s.width))
}

// Update folds one (key, value) observation into every row.
func (s *MVSketch) Update(key FlowKey, value int64) {
	for row := 0; row < s.depth; row++ {
		bucket := &s.table[s.index(row, key)]
		bucket.v += value
		if bucket.k != nil && bucket.k.Equal(key) {
			bucket.c += value
		} else {
			bucket.c -= value
			if bucket.c < 0 {
				bucket.k = key.Clone()
				bucket.c = -bucket.c
				s.metrics.add(metricSaturations, 1)
			}
		}
	}
	s.metrics.add(metricUpdates, 1)
}

// Query returns the minimum, across rows, of (V+C)/2 when the bucket's
// candidate matches key, or (V-C)/2 otherwise.
func (s *MVSketch) Query(key FlowKey) int64 {
	s.metrics.add(metricQueries, 1)
	min := int64(math.MaxInt64)
	for row := 0; row < s.depth; row++ {
		bucket := &s.table[s.index(row, key)]
		var est int64
		if bucket.k != nil && bucket.k.Equal(key) {
			est = (bucket.v + bucket.c) / 2
		} else {
			est = (bucket.v - bucket.c) / 2
		}
		if est < min {
			min = est
		}
	}
	return min
}

// mvBounds is the [lower, upper] estimate pair returned by QueryBounds.
type mvBounds struct {
	lower, upper int64
}

// QueryBounds returns a lower bound (the candidate vote C where key is the
// resident candidate, else 0, maximized across rows) and an upper bound
// (Query(key)).
func (s *MVSketch) QueryBounds(key FlowKey) mvBounds {
	var lower int64
	for row := 0; row < s.depth; row++ {
		bucket := &s.table[s.index(row, key)]
		l := int64(0)
		if bucket.k != nil && bucket.k.Equal(key) {
			l = bucket.c
		}
		if l > lower {
			lower = l
		}
	}
	return mvBounds{lower: lower, upper: s.Query(key)}
}

// Clear re-zeros every bucket.
func (s *MVSketch) Clear() {
	for i := range s.table {
		s.table[i] = mvBucket{}
	}
}

// ByteSize reports the sketch's self-footprint.
func (s *MVSketch) ByteSize() uint64 {
	var size uint64
	for i := range s.table {
		size += 16 // V, C
		if s.table[i].k != nil {
			size += uint64(len(s.table[i].k))
		}
	}
	return size
}

// Metrics returns the sketch's lifetime activity counters.
func (s *MVSketch) Metrics() *Metrics { return s.metrics }

// String renders a human-readable footprint and activity summary.
func (s *MVSketch) String() string {
	return fmt.Sprintf("MVSketch{size=%s, %s}", humanSize(s.ByteSize()), s.metrics)
}

// HeavyHitters scans every bucket whose running sum V exceeds theta,
// confirming each distinct resident candidate with a full Query before
// returning it (spec.md §4.6: "heavy-hitter and heavy-changer rules mirror
// LDSketch").
func (s *MVSketch) HeavyHitters(theta int64) map[string]int64 {
	s.metrics.add(metricDecodes, 1)
	out := make(map[string]int64)
	for _, bucket := range s.table {
		if bucket.v < theta || bucket.k == nil {
			continue
		}
		ks := bucket.k.String()
		if _, ok := out[ks]; ok {
			continue
		}
		if v := s.Query(bucket.k); v >= theta {
			out[ks] = v
		}
	}
	return out
}

// HeavyChangers returns every distinct resident candidate key (from either
// sketch) whose combined change estimate
// max(|upper_s - lower_other|, |upper_other - lower_s|) is >= theta.
func (s *MVSketch) HeavyChangers(theta int64, other *MVSketch) (map[string]int64, error) {
	s.metrics.add(metricDecodes, 1)
	if s.depth != other.depth || s.width != other.width {
		return nil, inconsistentLayers("MVSketch.HeavyChangers: shape mismatch")
	}
	dcap := func(key FlowKey) int64 {
		sb := s.QueryBounds(key)
		ob := other.QueryBounds(key)
		a := absInt64(sb.upper - ob.lower)
		b := absInt64(ob.upper - sb.lower)
		if a > b {
			return a
		}
		return b
	}
	out := make(map[string]int64)
	scan := func(sk *MVSketch) {
		for _, bucket := range sk.table {
			if bucket.v < theta || bucket.k == nil {
				continue
			}
			ks := bucket.k.String()
			if _, ok := out[ks]; ok {
				continue
			}
			if d := dcap(bucket.k); d >= theta {
				out[ks] = d
			}
		}
	}
	scan(s)
	scan(other)
	return out, nil
}
