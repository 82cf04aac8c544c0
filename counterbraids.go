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

// cbMessagePassing runs T rounds of belief propagation over a bipartite
// graph whose left vertices are the things being estimated (flows, or a
// layer's counters) and whose right vertices are the observed counter
// values cnt. left[i] maps a right-vertex index to the last message sent
// along that edge; right[j] lists the left-vertex indices incident to
// right-vertex j.
//
// Grounded on original_source/sketch/CounterBraids.h's free function
// MessagePassing: forward pass recomputes each right vertex's residual
// after subtracting its neighbors' current estimates, backward pass takes
// the min (odd iterations) or max (even iterations) of incoming messages,
// and the final estimate averages the last iteration against the T-1
// snapshot to damp oscillation.
func cbMessagePassing(cnt []int64, left []map[int]int64, right [][]int, lsize int, t int) []int64 {
	estimate := make([]int64, lsize)
	var snapshot []int64
	for i := 1; i <= t; i++ {
		for j, members := range right {
			var acc int64
			for _, k := range members {
				acc += estimate[k]
			}
			acc = cnt[j] - acc
			for _, k := range members {
				v := acc + estimate[k]
				if v < 1 {
					v = 1
				}
				left[k][j] = v
			}
		}
		for j := 0; j < lsize; j++ {
			if len(left[j]) == 0 {
				estimate[j] = 0
				continue
			}
			var maxi int64
			mini := int64(1) << 62
			for _, v := range left[j] {
				if v > maxi {
					maxi = v
				}
				if v < mini {
					mini = v
				}
			}
			if i&1 == 1 {
				estimate[j] = mini
			} else {
				estimate[j] = maxi
			}
		}
		if i == t-1 {
			snapshot = append([]int64(nil), estimate...)
		}
	}
	if snapshot == nil {
		snapshot = make([]int64, lsize)
	}
	for i := range estimate {
		estimate[i] = (estimate[i] + snapshot[i]) >> 1
	}
	return estimate
}

// cbLayer is one level of a CounterBraids counter hierarchy: a packed-bit
// counter array (with overflow status bits) and the hash family used to
// pick which of this layer's counters a child carries its overflow into.
type cbLayer struct {
	counters *PackedBitTable
	hashes   *HashFamily
}

// CounterBraidsConfig describes one layer of a CounterBraids hierarchy:
// Counters is the counter count before prime-rounding, Bits is the counter
// width, and Hashes is the number of hash functions a child layer (or, for
// layer 0, an incoming flow) uses to pick a position in this layer.
type CounterBraidsConfig struct {
	Counters int
	Bits     int
	Hashes   int
}

// CounterBraids is a multi-layer counter-sharing sketch: each layer's
// counters are narrower than the flow-count values they ultimately need to
// represent, and overflow carries probabilistically into the next layer's
// counters via a small hash fan-out, amortizing the rare heavy flow's
// storage cost across the common case's narrow counters (spec.md §4.9).
// Recovering exact counts is an offline decode step using loopy belief
// propagation (cbMessagePassing).
//
// Grounded on original_source/sketch/CounterBraids.h.
type CounterBraids struct {
	layers   []cbLayer
	flows    map[string]FlowKey
	flowHash *HashFamily
	metrics  *Metrics
}

// NewCounterBraids builds a CounterBraids hierarchy from a sequence of
// per-layer configs, outermost (closest to the flow) first.
func NewCounterBraids(b *HashBuilder, configs []CounterBraidsConfig) (*CounterBraids, error) {
	if len(configs) == 0 {
		return nil, invalidCapacity("configs", len(configs))
	}
	layers := make([]cbLayer, len(configs))
	for i, cfg := range configs {
		if cfg.Counters <= 0 {
			return nil, invalidCapacity("Counters", cfg.Counters)
		}
		if cfg.Bits <= 0 || cfg.Bits > 64 {
			return nil, invalidCapacity("Bits", cfg.Bits)
		}
		if cfg.Hashes <= 0 {
			return nil, invalidCapacity("Hashes", cfg.Hashes)
		}
		n := NextPrime(cfg.Counters)
		counters, err := NewPackedBitTable(n, cfg.Bits)
		if err != nil {
			return nil, err
		}
		hashes, err := b.AwareFamily(cfg.Hashes)
		if err != nil {
			return nil, err
		}
		layers[i] = cbLayer{counters: counters, hashes: hashes}
	}
	flowHash, err := b.AwareFamily(configs[0].Hashes)
	if err != nil {
		return nil, err
	}
	return &CounterBraids{layers: layers, flows: make(map[string]FlowKey), flowHash: flowHash, metrics: newMetrics()}, nil
}

// Update carries val into layer 0 at every position the flow key's hashes
// select, cascading overflow up through the remaining layers.
func (c *CounterBraids) Update(key FlowKey, val int64) {
	c.flows[string(key)] = key.Clone()
	n := c.layers[0].counters.Count()
	for i := 0; i < c.flowHash.Len(); i++ {
		idx := int(c.flowHash.SumFlowKey(i, key) % uint64(n))
		c.updateLayer(0, idx, val)
	}
	c.metrics.add(metricUpdates, 1)
}

// updateCnt adds val to counter cnt of layer, returning the carry (0 if it
// fit, else the overflow amount that must propagate to the next layer).
func (c *CounterBraids) updateCnt(layer, cnt int, val int64) int64 {
	counters := c.layers[layer].counters
	max := counters.Max()
	sum := counters.Get(cnt) + uint64(val)
	if sum <= max {
		counters.Set(cnt, sum)
		return 0
	}
	counters.Set(cnt, sum&max)
	counters.SetOverflowed(cnt)
	c.metrics.add(metricSaturations, 1)
	return int64(sum >> uint(bitsFor(max)))
}

func bitsFor(max uint64) int {
	n := 0
	for max > 0 {
		n++
		max >>= 1
	}
	return n
}

// updateLayer applies updateCnt at (layer, cnt) and, unless this is the
// last layer, cascades any carry into the next layer via that layer's hash
// family keyed on the counter index.
func (c *CounterBraids) updateLayer(layer, cnt int, val int64) {
	carry := c.updateCnt(layer, cnt, val)
	if layer == len(c.layers)-1 || carry == 0 {
		return
	}
	next := &c.layers[layer+1]
	n := next.counters.Count()
	for i := 0; i < next.hashes.Len(); i++ {
		idx := int(next.hashes.SumUint32(i, uint32(cnt)) % uint64(n))
		c.updateLayer(layer+1, idx, carry)
	}
}

// Clear re-zeros every layer and forgets every tracked flow.
func (c *CounterBraids) Clear() {
	for i := range c.layers {
		c.layers[i].counters.Clear()
	}
	c.flows = make(map[string]FlowKey)
}

// ByteSize reports the sketch's self-footprint.
func (c *CounterBraids) ByteSize() uint64 {
	var size uint64
	for i := range c.layers {
		size += c.layers[i].counters.ByteSize()
	}
	for k := range c.flows {
		size += uint64(len(k))
	}
	return size
}

// Metrics returns the sketch's lifetime activity counters.
func (c *CounterBraids) Metrics() *Metrics { return c.metrics }

// String renders a human-readable footprint and activity summary.
func (c *CounterBraids) String() string {
	return fmt.Sprintf("CounterBraids{size=%s, %s}", humanSize(c.ByteSize()), c.metrics)
}

// decodeLayer estimates layer i's true counter values from layer i+1's
// decoded (carry-aware) values, using T rounds of belief propagation. Only
// counters whose overflow status bit was ever set participate as left
// vertices — a counter that never overflowed has contributed no carry and
// needs no estimate beyond its own raw value.
func (c *CounterBraids) decodeLayer(i, t int, cnt []int64) []int64 {
	layer := &c.layers[i]
	next := &c.layers[i+1]
	n := layer.counters.Count()
	nNext := next.counters.Count()
	left := make([]map[int]int64, n)
	right := make([][]int, nNext)
	for j := 0; j < n; j++ {
		if !layer.counters.HasOverflowed(j) {
			continue
		}
		left[j] = make(map[int]int64)
		for h := 0; h < next.hashes.Len(); h++ {
			k := int(next.hashes.SumUint32(h, uint32(j)) % uint64(nNext))
			left[j][k] = 0
			right[k] = append(right[k], j)
		}
	}
	for j := range left {
		if left[j] == nil {
			left[j] = make(map[int]int64)
		}
	}
	return cbMessagePassing(cnt, left, right, n, t)
}

// decodeFlows estimates every tracked flow's true count from the decoded
// layer-0 counter values, returning a map from the flow key's hex string
// to its estimate.
func (c *CounterBraids) decodeFlows(t int, cnt []int64) map[string]int64 {
	keys := make([]FlowKey, 0, len(c.flows))
	for _, k := range c.flows {
		keys = append(keys, k)
	}
	n0 := c.layers[0].counters.Count()
	left := make([]map[int]int64, len(keys))
	right := make([][]int, n0)
	for idx, key := range keys {
		left[idx] = make(map[int]int64)
		for h := 0; h < c.flowHash.Len(); h++ {
			k := int(c.flowHash.SumFlowKey(h, key) % uint64(n0))
			left[idx][k] = 0
			right[k] = append(right[k], idx)
		}
	}
	est := cbMessagePassing(cnt, left, right, len(keys), t)
	out := make(map[string]int64, len(keys))
	for idx, key := range keys {
		out[key.String()] = est[idx]
	}
	return out
}

// Decode runs the full offline recovery pass: T rounds of belief
// propagation per layer boundary, folding each layer's decoded carry
// estimate with its own raw counter value (estimate<<bits + raw) before
// feeding it to the next decode step, finishing with every tracked flow's
// estimated true count.
func (c *CounterBraids) Decode(t int) map[string]int64 {
	c.metrics.add(metricDecodes, 1)
	last := len(c.layers) - 1
	cnt := make([]int64, c.layers[last].counters.Count())
	for i := range cnt {
		cnt[i] = int64(c.layers[last].counters.Get(i))
	}
	for i := last - 1; i >= 0; i-- {
		est := c.decodeLayer(i, t, cnt)
		bits := c.layers[i].counters.Bits()
		for j := range est {
			est[j] = (est[j] << uint(bits)) + int64(c.layers[i].counters.Get(j))
		}
		cnt = est
	}
	return c.decodeFlows(t, cnt)
}
