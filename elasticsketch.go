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

// elasticEntry is one slot of an ElasticSketch heavy-part bucket.
type elasticEntry struct {
	key  FlowKey
	val  int64
	flag bool
}

func (e *elasticEntry) isEmpty() bool { return e.key == nil || e.key.IsZero() }

// ElasticSketch is a two-tier sketch: a small "heavy part" of fixed-size
// buckets that hold exact (key, count) entries for the flows that earn a
// slot, backed by a "light part" CountMin sketch that absorbs everything
// the heavy part evicts. Each bucket's last slot is a guard counter that
// only swaps a resident entry out once evictions against it persistently
// outweigh the bucket's lightest resident by a factor of 8 — this damps
// thrashing from one-off bursts (spec.md §4.13; original_source's
// JUDGE_IF_SWAP(min, guard) = guard > min*8).
//
// Grounded on original_source/sketch/ElasticSketch.h.
type ElasticSketch struct {
	hashes     *HashFamily
	numBuckets int
	perBucket  int
	buckets    []elasticEntry
	light      *CountMin
	lightMax   int64
	metrics    *Metrics
}

// NewElasticSketch builds an ElasticSketch whose heavy part has numBuckets
// buckets (rounded to the next prime) of perBucket entries each (the last
// slot in every bucket is the guard, so perBucket must be >= 2), backed by
// a lDepth x lWidth CountMin light part whose per-cell counters saturate
// at lightMax (mirroring the source's `std::numeric_limits<U>::max()`
// overflow guard in lightpartInsert).
func NewElasticSketch(b *HashBuilder, numBuckets, perBucket, lDepth, lWidth int, lightMax int64) (*ElasticSketch, error) {
	if numBuckets <= 0 {
		return nil, invalidCapacity("numBuckets", numBuckets)
	}
	if perBucket < 2 {
		return nil, invalidCapacity("perBucket", perBucket)
	}
	numBuckets = NextPrime(numBuckets)
	hashes, err := b.AwareFamily(1)
	if err != nil {
		return nil, err
	}
	light, err := NewCountMin(b, lDepth, lWidth)
	if err != nil {
		return nil, err
	}
	return &ElasticSketch{
		hashes:     hashes,
		numBuckets: numBuckets,
		perBucket:  perBucket,
		buckets:    make([]elasticEntry, numBuckets*perBucket),
		light:      light,
		lightMax:   lightMax,
		metrics:    newMetrics(),
	}, nil
}

func (s *ElasticSketch) bucketIndex(key FlowKey) int {
	return int(s.hashes.SumFlowKey(0, key) % uint64(s.numBuckets))
}

// heavypartInsert tries to land (key, val) in the heavy part, returning
// 0 (absorbed as a match or into an empty slot), 1 (a resident entry was
// evicted — swapKey/swapVal hold what must go to the light part), or 2
// (the bucket was full and the guard did not clear — key/val itself must
// go to the light part).
func (s *ElasticSketch) heavypartInsert(key FlowKey, val int64) (code int, swapKey FlowKey, swapVal int64) {
	index := s.bucketIndex(key)
	base := index * s.perBucket
	minCounter := 0
	minVal := s.buckets[base].val

	for i := 0; i < s.perBucket-1; i++ {
		entry := &s.buckets[base+i]
		if !entry.isEmpty() && entry.key.Equal(key) {
			entry.val += val
			return 0, nil, 0
		}
		if entry.isEmpty() {
			entry.key = key.Clone()
			entry.val = val
			entry.flag = false
			return 0, nil, 0
		}
		if entry.val < minVal {
			minCounter = i
			minVal = entry.val
		}
	}

	guard := &s.buckets[base+s.perBucket-1]
	guard.val++

	if guard.val <= minVal<<3 {
		return 2, nil, 0
	}

	victim := &s.buckets[base+minCounter]
	swapKey, swapVal = victim.key, victim.val
	guard.val = 0
	victim.key = key.Clone()
	victim.val = val
	victim.flag = true
	return 1, swapKey, swapVal
}

// lightpartInsert applies a CountMin-style update to the light part,
// skipping the update entirely if it would push the counter past
// lightMax.
func (s *ElasticSketch) lightpartInsert(key FlowKey, val int64) {
	if s.light.Query(key)+val <= s.lightMax {
		s.light.Update(key, val)
	}
}

// Update folds one (key, val) observation into the sketch, routing
// overflow from the heavy part into the light part.
func (s *ElasticSketch) Update(key FlowKey, val int64) {
	code, swapKey, swapVal := s.heavypartInsert(key, val)
	switch code {
	case 0:
	case 1:
		s.lightpartInsert(swapKey, swapVal)
	case 2:
		s.lightpartInsert(key, val)
		s.metrics.add(metricSaturations, 1)
	}
	s.metrics.add(metricUpdates, 1)
}

// heavypartQuery reports the heavy part's exact count for key (0 if
// absent) and whether that slot was ever the target of an eviction swap.
func (s *ElasticSketch) heavypartQuery(key FlowKey) (val int64, flag bool) {
	index := s.bucketIndex(key)
	base := index * s.perBucket
	for i := 0; i < s.perBucket-1; i++ {
		entry := &s.buckets[base+i]
		if !entry.isEmpty() && entry.key.Equal(key) {
			return entry.val, entry.flag
		}
	}
	return 0, false
}

// Query returns the heavy part's exact count plus, if the heavy part has
// no record of key or that slot's flag is set (meaning an earlier,
// different flow's light-part residue may still belong to this slot), the
// light part's CountMin estimate.
func (s *ElasticSketch) Query(key FlowKey) int64 {
	s.metrics.add(metricQueries, 1)
	heavy, flag := s.heavypartQuery(key)
	var light int64
	if heavy == 0 || flag {
		light = s.light.Query(key)
	}
	return heavy + light
}

// MergeFrom sums other's light part (the CountMin-shaped overflow
// absorber) into s's light part. The heavy part's exact per-key entries
// are not merged: two independently-populated heavy parts can disagree on
// which keys earned a bucket slot, and reconciling that is not a sum
// (spec.md §9 Design Notes scopes merge to "CountMin-shaped sketches").
func (s *ElasticSketch) MergeFrom(others ...*ElasticSketch) error {
	lights := make([]*CountMin, len(others))
	for i, o := range others {
		lights[i] = o.light
	}
	return s.light.MergeFrom(lights...)
}

// Clear re-zeros the heavy part's buckets and the light part.
func (s *ElasticSketch) Clear() {
	for i := range s.buckets {
		s.buckets[i] = elasticEntry{}
	}
	s.light.Clear()
}

// ByteSize reports the sketch's self-footprint.
func (s *ElasticSketch) ByteSize() uint64 {
	var size uint64
	for i := range s.buckets {
		if s.buckets[i].key != nil {
			size += uint64(len(s.buckets[i].key))
		}
		size += 9 // val + flag
	}
	return size + s.light.ByteSize()
}

// Metrics returns the sketch's lifetime activity counters.
func (s *ElasticSketch) Metrics() *Metrics { return s.metrics }

// String renders a human-readable footprint and activity summary.
func (s *ElasticSketch) String() string {
	return fmt.Sprintf("ElasticSketch{size=%s, %s}", humanSize(s.ByteSize()), s.metrics)
}
