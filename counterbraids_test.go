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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterBraidsSingleLayerDecodesSparseFlows(t *testing.T) {
	b := seededBuilder(50)
	cb, err := NewCounterBraids(b, []CounterBraidsConfig{
		{Counters: 997, Bits: 16, Hashes: 2},
	})
	require.NoError(t, err)

	truth := map[string]int64{}
	for i := uint32(0); i < 20; i++ {
		key := FlowKeyFromUint32(i)
		val := int64(i + 1)
		cb.Update(key, val)
		truth[key.String()] = val
	}

	got := cb.Decode(5)
	for k, want := range truth {
		require.Equal(t, want, got[k], "a sparsely hashed single layer should decode exactly")
	}
}

func TestCounterBraidsMultiLayerDecodeIsNonNegative(t *testing.T) {
	b := seededBuilder(51)
	cb, err := NewCounterBraids(b, []CounterBraidsConfig{
		{Counters: 256, Bits: 4, Hashes: 2},
		{Counters: 64, Bits: 8, Hashes: 2},
	})
	require.NoError(t, err)

	for i := uint32(0); i < 50; i++ {
		cb.Update(FlowKeyFromUint32(i%11), int64(i%7)+1)
	}

	got := cb.Decode(4)
	require.NotEmpty(t, got)
	for k, v := range got {
		require.GreaterOrEqual(t, v, int64(0), "decoded estimate for %s must not be negative", k)
	}
}

func TestCounterBraidsClearResetsLayersAndFlows(t *testing.T) {
	b := seededBuilder(52)
	cb, err := NewCounterBraids(b, []CounterBraidsConfig{
		{Counters: 32, Bits: 8, Hashes: 2},
	})
	require.NoError(t, err)

	cb.Update(FlowKeyFromUint32(1), 10)
	cb.Clear()
	got := cb.Decode(3)
	require.Empty(t, got, "clearing forgets every tracked flow")
}
