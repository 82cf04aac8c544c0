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

package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type collector struct {
	batches [][]Sample
}

func (c *collector) Push(batch []Sample) {
	c.batches = append(c.batches, batch)
}

func TestStripeDrainsOnceFull(t *testing.T) {
	c := &collector{}
	s := NewStripe(3, c)

	s.Push(Sample{Key: []byte("a"), Value: 1})
	s.Push(Sample{Key: []byte("b"), Value: 2})
	require.Empty(t, c.batches, "stripe should not drain before it is full")

	s.Push(Sample{Key: []byte("c"), Value: 3})
	require.Len(t, c.batches, 1)
	require.Len(t, c.batches[0], 3)
	require.Equal(t, int64(3), c.batches[0][2].Value)
}

func TestStripeFlushDeliversPartialBatch(t *testing.T) {
	c := &collector{}
	s := NewStripe(4, c)

	s.Push(Sample{Key: []byte("a"), Value: 1})
	s.Push(Sample{Key: []byte("b"), Value: 2})
	s.Flush()

	require.Len(t, c.batches, 1)
	require.Len(t, c.batches[0], 2)

	// A second flush with nothing pending must not emit an empty batch.
	s.Flush()
	require.Len(t, c.batches, 1)
}

func TestBufferRoundRobinsAcrossStripes(t *testing.T) {
	c := &collector{}
	b := NewBuffer(2, 2, c)

	for i := 0; i < 4; i++ {
		b.Push(Sample{Key: []byte{byte(i)}, Value: int64(i)})
	}
	require.Len(t, c.batches, 2, "each stripe should have drained exactly once")
}
