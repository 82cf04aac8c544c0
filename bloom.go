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

// bitset is a flat bit array backing Bloom and the distinct-pair/B1/B2
// filters used by FlowRadar and TwoLevel.
type bitset struct {
	bits []byte
	n    int
}

func newBitset(n int) *bitset {
	return &bitset{bits: make([]byte, (n+7)/8), n: n}
}

func (s *bitset) set(i int)        { s.bits[i/8] |= 1 << uint(i%8) }
func (s *bitset) isSet(i int) bool { return s.bits[i/8]>>uint(i%8)&1 == 1 }
func (s *bitset) clear() {
	for i := range s.bits {
		s.bits[i] = 0
	}
}
func (s *bitset) byteSize() uint64 { return uint64(len(s.bits)) }

// Bloom is a set-membership sketch: nbits bits (rounded up to the next
// prime) and numHash independent hashes. Insert sets numHash bits; Query is
// true iff all probed bits are set. There are no false negatives and no
// removals (spec.md §4.3, §8 property 5).
//
// Grounded on original_source/sketch/BloomFilter.h; the teacher's own
// bloom.go/sketch.go implement a fixed 4-bit counting variant for TinyLFU
// admission rather than a plain bit-set Bloom filter, so this type supplies
// the plain-bitset half of C6 the teacher never needed.
type Bloom struct {
	hashes  *HashFamily
	bits    *bitset
	nbits   int
	metrics *Metrics
}

// NewBloom builds a Bloom filter of nbits bits (rounded to the next prime)
// and numHash independent hashes.
func NewBloom(b *HashBuilder, nbits, numHash int) (*Bloom, error) {
	if nbits <= 0 {
		return nil, invalidCapacity("nbits", nbits)
	}
	if numHash <= 0 {
		return nil, invalidCapacity("numHash", numHash)
	}
	nbits = NextPrime(nbits)
	hashes, err := b.AwareFamily(numHash)
	if err != nil {
		return nil, err
	}
	return &Bloom{hashes: hashes, bits: newBitset(nbits), nbits: nbits, metrics: newMetrics()}, nil
}

// Insert sets the numHash bits selected by key.
func (f *Bloom) Insert(key FlowKey) {
	for i := 0; i < f.hashes.Len(); i++ {
		f.bits.set(int(f.hashes.SumFlowKey(i, key) % uint64(f.nbits)))
	}
	f.metrics.add(metricUpdates, 1)
}

// Query reports whether every bit selected by key is set.
func (f *Bloom) Query(key FlowKey) bool {
	f.metrics.add(metricQueries, 1)
	for i := 0; i < f.hashes.Len(); i++ {
		if !f.bits.isSet(int(f.hashes.SumFlowKey(i, key) % uint64(f.nbits))) {
			return false
		}
	}
	return true
}

// Clear resets every bit to 0.
func (f *Bloom) Clear() { f.bits.clear() }

// ByteSize reports the filter's self-footprint.
func (f *Bloom) ByteSize() uint64 { return f.bits.byteSize() }

// Metrics returns the filter's lifetime activity counters.
func (f *Bloom) Metrics() *Metrics { return f.metrics }

// String renders a human-readable footprint and activity summary.
func (f *Bloom) String() string {
	return fmt.Sprintf("Bloom{size=%s, %s}", humanSize(f.ByteSize()), f.metrics)
}
