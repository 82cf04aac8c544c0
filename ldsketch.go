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

// ldEntry is one tracked key inside an LDSketch bucket's reservoir A.
type ldEntry struct {
	key   FlowKey
	value int64
}

// ldBucket is one cell of an LDSketch: a running sum V, an error floor e
// accumulated from evicted entries, a capacity bound l, and a small
// associative reservoir A of tracked keys (spec.md §4.6).
type ldBucket struct {
	v, e int64
	l    int
	a    map[string]*ldEntry
}

func (b *ldBucket) update(key FlowKey, value int64, expansion float64) (evicted bool) {
	b.v += value
	ks := string(key)
	if entry, ok := b.a[ks]; ok {
		entry.value += value
		return false
	}
	if len(b.a) < b.l {
		b.a[ks] = &ldEntry{key: key.Clone(), value: value}
		return false
	}

	k := int64(float64(b.v) / expansion)
	if (k+1)*(k+2)-1 <= int64(b.l) {
		min := value
		for _, entry := range b.a {
			if entry.value < min {
				min = entry.value
			}
		}
		b.e += min
		for ks2, entry := range b.a {
			entry.value -= min
			if entry.value <= 0 {
				delete(b.a, ks2)
			}
		}
		if value > min {
			b.a[ks] = &ldEntry{key: key.Clone(), value: value - min}
		}
		return true
	}
	b.l = int((k + 1) * (k + 2) - 1)
	b.a[ks] = &ldEntry{key: key.Clone(), value: value}
	return false
}

// ldBounds is the [lower, upper] estimate pair query returns for a key.
type ldBounds struct {
	lower, upper int64
}

func (b *ldBucket) query(key FlowKey) ldBounds {
	if entry, ok := b.a[string(key)]; ok {
		return ldBounds{lower: entry.value, upper: entry.value + b.e}
	}
	return ldBounds{lower: 0, upper: b.e}
}

func (b *ldBucket) clear() {
	b.v, b.e, b.l = 0, 0, 0
	b.a = make(map[string]*ldEntry)
}

func (b *ldBucket) byteSize() uint64 {
	var size uint64 = 24
	for _, entry := range b.a {
		size += uint64(len(entry.key)) + 8
	}
	return size
}

// LDSketch (Lossy Distinct sketch) is a depth x width grid of buckets, each
// independently growing a bounded reservoir of the keys landing in it and
// folding evicted mass into a per-bucket error floor, so that every tracked
// key's true value is bracketed within [lower, lower+e] (spec.md §4.6).
//
// Grounded on original_source/sketch/LDSketch.h. threshold and epsilon
// (jointly, the "expansion" of spec.md's glossary: expansion = epsilon *
// threshold) are fixed at construction, matching the source's constructor
// signature and its HeavyHitters/HeavyChangers methods, which take no
// separate runtime threshold argument.
type LDSketch struct {
	hashes    *HashFamily
	depth     int
	width     int
	threshold int64
	expansion float64
	buckets   []ldBucket
	metrics   *Metrics
}

// NewLDSketch builds a depth x width LDSketch with a fixed heavy-hitter
// threshold and an epsilon controlling how fast a bucket's reservoir
// capacity grows (epsilon must be > 0).
func NewLDSketch(b *HashBuilder, depth, width int, threshold int64, epsilon float64) (*LDSketch, error) {
	if depth <= 0 {
		return nil, invalidCapacity("depth", depth)
	}
	if width <= 0 {
		return nil, invalidCapacity("width", width)
	}
	if epsilon <= 0 {
		return nil, invalidCapacity("epsilon", epsilon)
	}
	width = NextPrime(width)
	hashes, err := b.AwareFamily(depth)
	if err != nil {
		return nil, err
	}
	buckets := make([]ldBucket, depth*width)
	for i := range buckets {
		buckets[i].a = make(map[string]*ldEntry)
	}
	return &LDSketch{
		hashes:    hashes,
		depth:     depth,
		width:     width,
		threshold: threshold,
		expansion: epsilon * float64(threshold),
		buckets:   buckets,
		metrics:   newMetrics(),
	}, nil
}

func (s *LDSketch) index(row int, key FlowKey) int {
	return row*s.width + int(s.hashes.SumFlowKey(row, key)%uint64(s.width))
}

// Update folds one (key, value) observation into every row's bucket.
func (s *LDSketch) Update(key FlowKey, value int64) {
	for row := 0; row < s.depth; row++ {
		if s.buckets[s.index(row, key)].update(key, value, s.expansion) {
			s.metrics.add(metricSaturations, 1)
		}
	}
	s.metrics.add(metricUpdates, 1)
}

// Query returns the [lower, upper] estimate bracket, tightest across rows:
// the maximum lower bound and the minimum upper bound.
func (s *LDSketch) Query(key FlowKey) (int64, int64) {
	s.metrics.add(metricQueries, 1)
	lower := int64(0)
	upper := int64(1) << 62
	for row := 0; row < s.depth; row++ {
		b := s.buckets[s.index(row, key)].query(key)
		if b.lower > lower {
			lower = b.lower
		}
		if b.upper < upper {
			upper = b.upper
		}
	}
	return lower, upper
}

// Clear re-zeros every bucket.
func (s *LDSketch) Clear() {
	for i := range s.buckets {
		s.buckets[i].clear()
	}
}

// ByteSize reports the sketch's self-footprint.
func (s *LDSketch) ByteSize() uint64 {
	var size uint64
	for i := range s.buckets {
		size += s.buckets[i].byteSize()
	}
	return size
}

// Metrics returns the sketch's lifetime activity counters.
func (s *LDSketch) Metrics() *Metrics { return s.metrics }

// String renders a human-readable footprint and activity summary.
func (s *LDSketch) String() string {
	return fmt.Sprintf("LDSketch{size=%s, %s}", humanSize(s.ByteSize()), s.metrics)
}

// HeavyHitters returns every distinct tracked key whose minimum upper bound
// across the rows that hash it is >= the sketch's threshold.
func (s *LDSketch) HeavyHitters() map[string]int64 {
	s.metrics.add(metricDecodes, 1)
	out := make(map[string]int64)
	for row := 0; row < s.depth; row++ {
		for col := 0; col < s.width; col++ {
			bucket := &s.buckets[row*s.width+col]
			if bucket.v < s.threshold {
				continue
			}
			for _, entry := range bucket.a {
				ks := entry.key.String()
				if _, ok := out[ks]; ok {
					continue
				}
				_, upper := s.Query(entry.key)
				if upper >= s.threshold {
					out[ks] = upper
				}
			}
		}
	}
	return out
}

// HeavyChangers returns every distinct tracked key (from either sketch)
// whose minimum-across-rows change estimate
// max(upper_s - lower_other, upper_other - lower_s) is >= the threshold.
// s and other must share shape and threshold.
func (s *LDSketch) HeavyChangers(other *LDSketch) (map[string]int64, error) {
	s.metrics.add(metricDecodes, 1)
	if s.depth != other.depth || s.width != other.width {
		return nil, inconsistentLayers("LDSketch.HeavyChangers: shape mismatch")
	}
	dmin := func(key FlowKey) int64 {
		min := int64(1) << 62
		for row := 0; row < s.depth; row++ {
			sb := s.buckets[s.index(row, key)].query(key)
			ob := other.buckets[other.index(row, key)].query(key)
			d := sb.upper - ob.lower
			if other := ob.upper - sb.lower; other > d {
				d = other
			}
			if d < min {
				min = d
			}
		}
		return min
	}
	out := make(map[string]int64)
	scan := func(sk *LDSketch) {
		for row := 0; row < sk.depth; row++ {
			for col := 0; col < sk.width; col++ {
				bucket := &sk.buckets[row*sk.width+col]
				if bucket.v < sk.threshold {
					continue
				}
				for _, entry := range bucket.a {
					ks := entry.key.String()
					if _, ok := out[ks]; ok {
						continue
					}
					if d := dmin(entry.key); d >= s.threshold {
						out[ks] = d
					}
				}
			}
		}
	}
	scan(s)
	scan(other)
	return out, nil
}
