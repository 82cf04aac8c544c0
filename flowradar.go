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

// FlowRadar pairs a Bloom filter (seen-before test) with an XOR-encoded
// array: each array cell accumulates a flow count, a size sum, and the XOR
// of every flow key that has ever hashed there. Whenever a cell's flow
// count drops to exactly 1, the XOR accumulator at that cell IS that
// flow's key, letting decode peel resolved flows off one at a time until
// no singleton cell remains (spec.md §4.10, §8 property 8: "decodable
// exactly when the flow-to-cell bipartite graph has no 2-core").
//
// Grounded on original_source/sketch/FlowRadar.h. The Bloom filter uses
// the Farm hash family (see hashfamily.go's farmHash) while the array uses
// Aware, so the two independent roles do not share a generator.
type FlowRadar struct {
	bloom     *Bloom
	hashes    *HashFamily
	n         int
	flowCount []int64
	sizeSum   []int64
	keys      []FlowKey
	keyWidth  int
	metrics   *Metrics
}

// NewFlowRadar builds a FlowRadar whose embedded Bloom filter has bfBits
// bits and bfHashes hash functions, and whose XOR-encoded array has n
// cells (rounded to the next prime) addressed by nHashes hashes. keyWidth
// is the fixed FlowKey width this instance will accept.
func NewFlowRadar(b *HashBuilder, bfBits, bfHashes, n, nHashes, keyWidth int) (*FlowRadar, error) {
	if keyWidth <= 0 {
		return nil, invalidCapacity("keyWidth", keyWidth)
	}
	bloomHashes, err := b.FarmFamily(bfHashes)
	if err != nil {
		return nil, err
	}
	bloomBits := NextPrime(bfBits)
	bloom := &Bloom{hashes: bloomHashes, bits: newBitset(bloomBits), nbits: bloomBits, metrics: newMetrics()}

	if n <= 0 {
		return nil, invalidCapacity("n", n)
	}
	n = NextPrime(n)
	hashes, err := b.AwareFamily(nHashes)
	if err != nil {
		return nil, err
	}
	keys := make([]FlowKey, n)
	for i := range keys {
		keys[i] = NewFlowKey(keyWidth)
	}
	return &FlowRadar{
		bloom:     bloom,
		hashes:    hashes,
		n:         n,
		flowCount: make([]int64, n),
		sizeSum:   make([]int64, n),
		keys:      keys,
		keyWidth:  keyWidth,
		metrics:   newMetrics(),
	}, nil
}

// Update folds one (key, size) observation into the sketch. The first time
// a given key is seen, every cell it hashes to gets its flow count bumped
// and the key XORed into that cell's accumulator; size is always added to
// every hashed cell's size sum.
func (f *FlowRadar) Update(key FlowKey, size int64) {
	seen := f.bloom.Query(key)
	if !seen {
		f.bloom.Insert(key)
	}
	for i := 0; i < f.hashes.Len(); i++ {
		index := int(f.hashes.SumFlowKey(i, key) % uint64(f.n))
		if !seen {
			f.flowCount[index]++
			f.keys[index].XorInto(key)
		}
		f.sizeSum[index] += size
	}
	f.metrics.add(metricUpdates, 1)
}

// Decode repeatedly finds a cell whose flow count is exactly 1 (so its XOR
// accumulator is a lone, directly-readable flow key), records that flow's
// size, and peels it out of every cell it touches, XORing its key back out
// and decrementing flow counts. It stops when no singleton cell remains,
// returning the subset of flows it could fully recover.
func (f *FlowRadar) Decode() map[string]int64 {
	f.metrics.add(metricDecodes, 1)
	ans := make(map[string]int64)
	for {
		index := -1
		for i := 0; i < f.n; i++ {
			if f.flowCount[i] == 1 {
				index = i
				break
			}
		}
		if index == -1 {
			break
		}
		key := f.keys[index].Clone()
		size := f.sizeSum[index]
		for i := 0; i < f.hashes.Len(); i++ {
			l := int(f.hashes.SumFlowKey(i, key) % uint64(f.n))
			f.flowCount[l]--
			if f.sizeSum[l] >= size {
				f.sizeSum[l] -= size
			} else {
				size = f.sizeSum[l]
				f.sizeSum[l] = 0
				f.metrics.add(metricSaturations, 1)
			}
			f.keys[l].XorInto(key)
		}
		ans[key.String()] = size
	}
	return ans
}

// Clear resets the Bloom filter and every array cell.
func (f *FlowRadar) Clear() {
	f.bloom.Clear()
	for i := range f.flowCount {
		f.flowCount[i] = 0
		f.sizeSum[i] = 0
		f.keys[i] = NewFlowKey(f.keyWidth)
	}
}

// ByteSize reports the sketch's self-footprint.
func (f *FlowRadar) ByteSize() uint64 {
	size := f.bloom.ByteSize()
	size += uint64(len(f.flowCount)) * 16 // flowCount + sizeSum, 8 bytes each
	size += uint64(f.n * f.keyWidth)
	return size
}

// Metrics returns the sketch's lifetime activity counters.
func (f *FlowRadar) Metrics() *Metrics { return f.metrics }

// String renders a human-readable footprint and activity summary.
func (f *FlowRadar) String() string {
	return fmt.Sprintf("FlowRadar{size=%s, %s}", humanSize(f.ByteSize()), f.metrics)
}
