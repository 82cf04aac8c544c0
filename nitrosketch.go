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

	mrand "math/rand"
)

// nitroUpdateProbs are the eight candidate sampling probabilities
// adjustUpdateProb chooses between, halving from 1.0 down to 1/128 as the
// estimated traffic rate climbs (original_source/sketch/NitroSketch.h).
var nitroUpdateProbs = [8]float64{1.0, 1.0 / 2, 1.0 / 4, 1.0 / 8, 1.0 / 16, 1.0 / 32, 1.0 / 64, 1.0 / 128}

// NitroSketch is a CountSketch-shaped table that, once traffic is heavy
// enough to guarantee low relative error regardless, stops updating on
// every packet and instead jumps between updates with a geometrically
// distributed skip, scaling each sampled update by 1/prob to stay
// unbiased in expectation (spec.md §4.14, §8 property 11). It starts in
// "always correct" mode (every packet updates) and latches permanently
// into "line rate" mode once a per-row running square-sum statistic
// crosses a width-derived threshold.
//
// Grounded on original_source/sketch/NitroSketch.h. The skip-count's
// geometric distribution has no standard-library sampler and none of the
// example pack's dependencies provide one either, so getNextUpdate uses
// inverse-transform sampling over math/rand.Float64 — the only
// stdlib-only component of this file (see DESIGN.md).
type NitroSketch struct {
	depth, width int
	array        *Table[int64]
	bucketHashes *HashFamily
	signHashes   *HashFamily
	squareSum    []float64

	nextBucket int
	nextPacket int

	updateProb float64
	rng        *mrand.Rand

	lineRateEnable bool
	switchThresh   float64

	metrics *Metrics
}

// NewNitroSketch builds a depth x width NitroSketch. width is rounded up
// to the next prime.
func NewNitroSketch(b *HashBuilder, depth, width int) (*NitroSketch, error) {
	if depth <= 0 {
		return nil, invalidCapacity("depth", depth)
	}
	if width <= 0 {
		return nil, invalidCapacity("width", width)
	}
	width = NextPrime(width)
	array, err := NewTable[int64](depth, width)
	if err != nil {
		return nil, err
	}
	bucketHashes, err := b.AwareFamily(depth)
	if err != nil {
		return nil, err
	}
	signHashes, err := b.AwareFamily(depth)
	if err != nil {
		return nil, err
	}
	seed := int64(b.Aware().Sum([]byte("nitrosketch-rng-seed")))
	return &NitroSketch{
		depth:        depth,
		width:        width,
		array:        array,
		bucketHashes: bucketHashes,
		signHashes:   signHashes,
		squareSum:    make([]float64, depth),
		nextPacket:   1,
		updateProb:   1.0,
		rng:          mrand.New(mrand.NewSource(seed)),
		switchThresh: (1.0 + math.Sqrt(11.0/float64(width))) * float64(width) * float64(width),
		metrics:      newMetrics(),
	}, nil
}

func (s *NitroSketch) sign(row int, key FlowKey) int64 {
	if s.signHashes.SumFlowKey(row, key)&1 == 1 {
		return 1
	}
	return -1
}

// getNextUpdate advances the (nextPacket, nextBucket) cursor by a skip
// that is 1 when prob is 1 (every row of every packet updates), or
// 1+Geometric(prob) otherwise, folding the skip across row boundaries via
// div/mod by depth exactly as the source does.
func (s *NitroSketch) getNextUpdate(prob float64) {
	sample := 1
	if prob < 1.0 {
		sample = 1 + geometricSample(s.rng, prob)
	}
	s.nextBucket += sample
	s.nextPacket = s.nextBucket / s.depth
	s.nextBucket %= s.depth
}

// geometricSample draws from the number-of-failures-before-a-success
// geometric distribution with success probability p, via inverse-transform
// sampling: Floor(log(1-U) / log(1-p)) has exactly that distribution for
// U uniform on [0,1).
func geometricSample(rng *mrand.Rand, p float64) int {
	u := rng.Float64()
	return int(math.Log(1-u) / math.Log(1-p))
}

func (s *NitroSketch) doUpdate(key FlowKey, value int64, prob float64) {
	s.metrics.add(metricUpdates, 1)
	s.nextPacket--
	if s.nextPacket != 0 {
		return
	}
	for {
		i := s.nextBucket
		index := int(s.bucketHashes.SumFlowKey(i, key) % uint64(s.width))
		delta := float64(value) / prob * float64(s.sign(i, key))

		cur := s.array.Get(i, index)
		s.squareSum[i] += (2*float64(cur) + delta) * delta
		s.array.Set(i, index, cur+int64(delta))

		s.getNextUpdate(prob)
		if s.nextPacket > 0 {
			break
		}
	}
}

// isLineRateUpdate reports whether the sketch has (or now does) latch into
// always-line-rate mode: the median per-row square-sum has reached
// switchThresh. Once latched, it never reverts.
func (s *NitroSketch) isLineRateUpdate() bool {
	if s.lineRateEnable {
		return true
	}
	values := append([]float64(nil), s.squareSum...)
	for i := 1; i < len(values); i++ {
		v := values[i]
		j := i - 1
		for j >= 0 && values[j] > v {
			values[j+1] = values[j]
			j--
		}
		values[j+1] = v
	}
	var median float64
	if s.depth&1 == 1 {
		median = values[s.depth/2]
	} else {
		median = (values[s.depth/2-1] + values[s.depth/2]) / 2
	}
	if median >= s.switchThresh {
		s.lineRateEnable = true
	}
	return s.lineRateEnable
}

// AlwaysLineRateUpdate always samples at the current updateProb,
// regardless of whether the line-rate threshold has been crossed yet.
func (s *NitroSketch) AlwaysLineRateUpdate(key FlowKey, value int64) {
	s.doUpdate(key, value, s.updateProb)
}

// AlwaysCorrectUpdate samples at updateProb once line-rate mode has
// latched in, otherwise always updates (prob 1.0) for maximum accuracy.
func (s *NitroSketch) AlwaysCorrectUpdate(key FlowKey, value int64) {
	if s.isLineRateUpdate() {
		s.doUpdate(key, value, s.updateProb)
	} else {
		s.doUpdate(key, value, 1.0)
	}
}

// Update is an alias for AlwaysCorrectUpdate, the source's default mode.
func (s *NitroSketch) Update(key FlowKey, value int64) {
	s.AlwaysCorrectUpdate(key, value)
}

// Query returns the median-of-signed-estimates across rows, the standard
// CountSketch decode (spec.md §4.4).
func (s *NitroSketch) Query(key FlowKey) int64 {
	s.metrics.add(metricQueries, 1)
	values := make([]int64, s.depth)
	for i := 0; i < s.depth; i++ {
		index := int(s.bucketHashes.SumFlowKey(i, key) % uint64(s.width))
		values[i] = s.array.Get(i, index) * s.sign(i, key)
	}
	return medianOfMeans(values)
}

// AdjustUpdateProb recomputes the sampling probability from an estimated
// traffic rate, clamping log2(traffic_rate) to [0,7] before indexing
// nitroUpdateProbs.
func (s *NitroSketch) AdjustUpdateProb(trafficRate float64) {
	logRate := int(math.Log2(trafficRate))
	if logRate < 0 {
		logRate = 0
		s.metrics.add(metricSaturations, 1)
	}
	if logRate > 7 {
		logRate = 7
		s.metrics.add(metricSaturations, 1)
	}
	s.updateProb = nitroUpdateProbs[logRate]
}

// Clear re-zeros the table and per-row statistics, but does not reset
// line-rate latching or the sampling probability.
func (s *NitroSketch) Clear() {
	s.array.Clear()
	for i := range s.squareSum {
		s.squareSum[i] = 0
	}
}

// ByteSize reports the sketch's self-footprint.
func (s *NitroSketch) ByteSize() uint64 {
	return s.array.ByteSize() + uint64(len(s.squareSum))*8
}

// Metrics returns the sketch's lifetime activity counters.
func (s *NitroSketch) Metrics() *Metrics { return s.metrics }

// String renders a human-readable footprint and activity summary.
func (s *NitroSketch) String() string {
	return fmt.Sprintf("NitroSketch{size=%s, %s}", humanSize(s.ByteSize()), s.metrics)
}
