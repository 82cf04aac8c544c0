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

// hashPipeStage is one depth stage: width (key, value) slots, the all-zero
// key meaning empty.
type hashPipeStage struct {
	keys   []FlowKey
	values []int64
}

// HashPipe is a depth-stage cascade of width (key, value) slots. Update
// always lands the newest observation in stage 0, evicting and cascading
// any displaced resident through the remaining stages, swapping at each
// stage only if the cascading value dominates the stage's current
// occupant. Query sums every matching slot across all stages (spec.md
// §4.5).
//
// Grounded on original_source/sketch/HashPipe.h.
type HashPipe struct {
	hashes  *HashFamily
	stages  []hashPipeStage
	width   int
	depth   int
	metrics *Metrics
}

// NewHashPipe builds a depth-stage HashPipe, each stage holding width
// slots.
func NewHashPipe(b *HashBuilder, depth, width int) (*HashPipe, error) {
	if depth <= 0 {
		return nil, invalidCapacity("depth", depth)
	}
	if width <= 0 {
		return nil, invalidCapacity("width", width)
	}
	hashes, err := b.AwareFamily(depth)
	if err != nil {
		return nil, err
	}
	stages := make([]hashPipeStage, depth)
	for i := range stages {
		stages[i] = hashPipeStage{keys: make([]FlowKey, width), values: make([]int64, width)}
	}
	return &HashPipe{hashes: hashes, stages: stages, width: width, depth: depth, metrics: newMetrics()}, nil
}

func (p *HashPipe) slot(stage int, key FlowKey) int {
	return int(p.hashes.SumFlowKey(stage, key) % uint64(p.width))
}

// Update folds one (key, value) observation into the cascade.
func (p *HashPipe) Update(key FlowKey, value int64) {
	p.metrics.add(metricUpdates, 1)
	s0 := &p.stages[0]
	idx := p.slot(0, key)

	switch {
	case s0.keys[idx] == nil || s0.keys[idx].IsZero():
		s0.keys[idx] = key.Clone()
		s0.values[idx] = value
		return
	case s0.keys[idx].Equal(key):
		s0.values[idx] += value
		return
	}

	// Stage 0 is occupied by a different key: the newest arrival always
	// wins slot 0, and the displaced resident cascades onward.
	curKey, curValue := s0.keys[idx], s0.values[idx]
	s0.keys[idx] = key.Clone()
	s0.values[idx] = value

	for stage := 1; stage < p.depth; stage++ {
		st := &p.stages[stage]
		idx := p.slot(stage, curKey)

		switch {
		case st.keys[idx] == nil || st.keys[idx].IsZero():
			st.keys[idx] = curKey
			st.values[idx] = curValue
			return
		case st.keys[idx].Equal(curKey):
			st.values[idx] += curValue
			return
		case st.values[idx] < curValue:
			// The resident is lighter than what we're carrying: swap it
			// in and carry the (lighter) resident onward instead.
			evictedKey, evictedValue := st.keys[idx], st.values[idx]
			st.keys[idx], st.values[idx] = curKey, curValue
			curKey, curValue = evictedKey, evictedValue
		default:
			// Keep pushing the current pair to the next stage.
		}
	}
	// Fell off the last stage: dropped, per spec.md §4.5.
	p.metrics.add(metricSaturations, 1)
}

// Query sums every slot across all stages whose key matches.
func (p *HashPipe) Query(key FlowKey) int64 {
	p.metrics.add(metricQueries, 1)
	var total int64
	for stage := 0; stage < p.depth; stage++ {
		idx := p.slot(stage, key)
		k := p.stages[stage].keys[idx]
		if k != nil && k.Equal(key) {
			total += p.stages[stage].values[idx]
		}
	}
	return total
}

// Clear empties every stage.
func (p *HashPipe) Clear() {
	for i := range p.stages {
		st := &p.stages[i]
		for j := range st.keys {
			st.keys[j] = nil
			st.values[j] = 0
		}
	}
}

// ByteSize reports the sketch's self-footprint.
func (p *HashPipe) ByteSize() uint64 {
	var size uint64
	for _, st := range p.stages {
		for _, k := range st.keys {
			size += uint64(len(k)) + 8
		}
	}
	return size
}

// Metrics returns the sketch's lifetime activity counters.
func (p *HashPipe) Metrics() *Metrics { return p.metrics }

// String renders a human-readable footprint and activity summary.
func (p *HashPipe) String() string {
	return fmt.Sprintf("HashPipe{size=%s, %s}", humanSize(p.ByteSize()), p.metrics)
}
