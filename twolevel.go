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

// TwoLevel is a super-spreader detector: a cascade of Bloom filters that
// probabilistically samples (src, dst) pair observations down to a much
// smaller population of candidate distinct-destination-count "polls" per
// source, landing a source in a fixed-width linear-probed reservoir once
// enough of those polls land (spec.md §4.15). distinctBF suppresses
// repeat pairs; bf gates which sources are even eligible to poll; each of
// the table_count tables independently either records a fresh poll (with
// probability edge3/1000) or reports whether src already polled it, so
// that count approximates how many of the table_count tables have seen
// src across the whole observed pair population.
//
// Grounded on original_source/sketch/TwoLevel.h. The per-(pair) routing
// decisions h1/h2/h3 use the Farm hash family (see hashfamily.go's
// farmHash) so that routing is independent of the Bloom filters' own
// Aware-hashed membership tests.
type TwoLevel struct {
	distinctBF *Bloom
	bf         *Bloom
	tables     []*Bloom
	route      *HashFamily

	ss      []uint32
	ssWidth int

	r1, r2, gamma float64
	w             int

	metrics *Metrics
}

// TwoLevelConfig bundles TwoLevel's many construction parameters.
type TwoLevelConfig struct {
	DistinctBFBits, DistinctBFHashes  int
	BFBits, BFHashes                  int
	TableCount, TableBits, TableHashes int
	ReservoirWidth                    int
	R1, R2, Gamma                     float64
	W                                 int
}

// NewTwoLevel builds a TwoLevel detector from cfg.
func NewTwoLevel(b *HashBuilder, cfg TwoLevelConfig) (*TwoLevel, error) {
	if cfg.TableCount <= 0 {
		return nil, invalidCapacity("TableCount", cfg.TableCount)
	}
	if cfg.ReservoirWidth <= 0 {
		return nil, invalidCapacity("ReservoirWidth", cfg.ReservoirWidth)
	}
	if cfg.Gamma <= 0 {
		return nil, invalidCapacity("Gamma", cfg.Gamma)
	}

	distinctBF, err := NewBloom(b, cfg.DistinctBFBits, cfg.DistinctBFHashes)
	if err != nil {
		return nil, err
	}
	bf, err := NewBloom(b, cfg.BFBits, cfg.BFHashes)
	if err != nil {
		return nil, err
	}
	tables := make([]*Bloom, cfg.TableCount)
	for i := range tables {
		t, err := NewBloom(b, cfg.TableBits, cfg.TableHashes)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}
	route, err := b.FarmFamily(cfg.TableCount + 2)
	if err != nil {
		return nil, err
	}
	ssWidth := NextPrime(cfg.ReservoirWidth)
	return &TwoLevel{
		distinctBF: distinctBF,
		bf:         bf,
		tables:     tables,
		route:      route,
		ss:         make([]uint32, ssWidth),
		ssWidth:    ssWidth,
		r1:         cfg.R1,
		r2:         cfg.R2,
		gamma:      cfg.Gamma,
		w:          cfg.W,
		metrics:    newMetrics(),
	}, nil
}

// Insert records one observed (src, dst) pair.
func (t *TwoLevel) Insert(src, dst uint32) {
	pair := PackPair(src, dst)
	if t.distinctBF.Query(pair) {
		return
	}

	edge1 := int(t.r1 * 1000)
	edge2 := int(t.r2 * 1000)
	edge3 := int((1 / t.gamma) * 1000)
	h1 := int(t.route.SumFlowKey(0, pair) % 1000)
	h2 := int(t.route.SumFlowKey(1, pair) % 1000)

	srcKey := FlowKeyFromUint32(src)
	if h2 < edge2 && t.bf.Query(srcKey) {
		count := 0
		for i, table := range t.tables {
			h3 := int(t.route.SumFlowKey(2+i, pair) % 1000)
			if h3 < edge3 {
				table.Insert(srcKey)
				count++
			} else if table.Query(srcKey) {
				count++
			}
		}
		if count >= t.w {
			if !t.reserve(src, srcKey) {
				t.metrics.add(metricSaturations, 1)
			}
		}
	}

	if h1 < edge1 {
		t.bf.Insert(srcKey)
	}
	t.distinctBF.Insert(pair)
	t.metrics.add(metricUpdates, 1)
}

// reserve linear-probes src into the reservoir starting at its hashed
// home slot, stopping either at the first empty slot (insert) or the
// first slot already holding src (dedupe, no-op).
func (t *TwoLevel) reserve(src uint32, srcKey FlowKey) (placed bool) {
	start := int(t.route.SumFlowKey(0, srcKey) % uint64(t.ssWidth))
	for i := 0; i < t.ssWidth; i++ {
		idx := (start + i) % t.ssWidth
		if t.ss[idx] == 0 {
			t.ss[idx] = src
			return true
		}
		if t.ss[idx] == src {
			return true
		}
	}
	return false
}

// Query returns every source address currently resident in the reservoir
// — the sketch's super-spreader candidates.
func (t *TwoLevel) Query() []uint32 {
	t.metrics.add(metricDecodes, 1)
	var out []uint32
	for _, v := range t.ss {
		if v != 0 {
			out = append(out, v)
		}
	}
	return out
}

// Clear resets every Bloom filter and the reservoir.
func (t *TwoLevel) Clear() {
	t.distinctBF.Clear()
	t.bf.Clear()
	for _, table := range t.tables {
		table.Clear()
	}
	for i := range t.ss {
		t.ss[i] = 0
	}
}

// ByteSize reports the sketch's self-footprint.
func (t *TwoLevel) ByteSize() uint64 {
	size := t.distinctBF.ByteSize() + t.bf.ByteSize()
	for _, table := range t.tables {
		size += table.ByteSize()
	}
	size += uint64(len(t.ss)) * 4
	return size
}

// Metrics returns the sketch's lifetime activity counters.
func (t *TwoLevel) Metrics() *Metrics { return t.metrics }

// String renders a human-readable footprint and activity summary.
func (t *TwoLevel) String() string {
	return fmt.Sprintf("TwoLevel{size=%s, %s}", humanSize(t.ByteSize()), t.metrics)
}
