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

// Package feed stands in for the "trace feeder" external collaborator
// described in spec.md §6: something upstream that iterates a finite
// sequence of (FlowKey, value) pairs and hands them to a sketch. It is a
// thin batching buffer, not a parser — it does no I/O and knows nothing
// about packet formats.
//
// Grounded on the teacher's ring/ring.go striped ring buffer (the
// BP-Wrapper batching process), retyped from its cache-invalidation
// Element string payload to a Sample carrying a sketch update.
package feed

import "sync"

// Sample is one (FlowKey, value) observation awaiting delivery to a sketch.
type Sample struct {
	Key   []byte
	Value int64
}

// Consumer is the user-defined object responsible for receiving and
// processing samples in batches when a Stripe drains — typically a closure
// over a single sketch's Update method.
type Consumer interface {
	Push([]Sample)
}

// Stripe is a single ring buffer of samples, not safe for concurrent use by
// itself (spec.md §5: "a sketch instance is not safe for concurrent
// mutation"; a Stripe mirrors that single-producer assumption).
type Stripe struct {
	Consumer Consumer
	data     []Sample
	head     int
	capacity int
}

// NewStripe allocates a Stripe of the given capacity that drains to
// consumer once full.
func NewStripe(capacity int, consumer Consumer) *Stripe {
	return &Stripe{
		Consumer: consumer,
		data:     make([]Sample, capacity),
		capacity: capacity,
	}
}

// Push appends a sample to the stripe and drains (copies every sample and
// hands the batch to Consumer) once the stripe fills.
func (s *Stripe) Push(sample Sample) {
	s.data[s.head] = sample
	s.head++
	if s.head >= s.capacity {
		s.Consumer.Push(append(s.data[:0:0], s.data...))
		s.head = 0
	}
}

// Flush drains any partially-filled stripe immediately, for callers that
// have reached the end of a finite trace (spec.md §6: the trace feeder
// "iterates ... pairs, finite") and need the tail batch delivered without
// waiting for the stripe to fill.
func (s *Stripe) Flush() {
	if s.head == 0 {
		return
	}
	s.Consumer.Push(append([]Sample(nil), s.data[:s.head]...))
	s.head = 0
}

// Buffer stripes pushes across multiple Stripes to lower contention when
// several producers feed a sharded collection of sketches (spec.md §5:
// "multi-producer deployments must shard sketches" — one stripe per
// shard).
type Buffer struct {
	mu      sync.Mutex
	stripes []*Stripe
	next    int
}

// NewBuffer builds a Buffer of n independently-draining stripes, each of
// the given capacity.
func NewBuffer(n, capacity int, consumer Consumer) *Buffer {
	stripes := make([]*Stripe, n)
	for i := range stripes {
		stripes[i] = NewStripe(capacity, consumer)
	}
	return &Buffer{stripes: stripes}
}

// Push round-robins the sample across the buffer's stripes.
func (b *Buffer) Push(sample Sample) {
	b.mu.Lock()
	stripe := b.stripes[b.next]
	b.next = (b.next + 1) % len(b.stripes)
	b.mu.Unlock()
	stripe.Push(sample)
}

// Flush drains every stripe's partial batch.
func (b *Buffer) Flush() {
	for _, s := range b.stripes {
		s.Flush()
	}
}
