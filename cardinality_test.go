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

func TestHyperLogLogEstimateWithinRange(t *testing.T) {
	b := seededBuilder(20)
	hll, err := NewHyperLogLog(b, 1024)
	require.NoError(t, err)

	const distinct = 10000
	for i := uint32(0); i < distinct; i++ {
		hll.Add(FlowKeyFromUint32(i))
	}
	est := hll.Cardinality()
	require.InEpsilon(t, float64(distinct), float64(est), 0.15,
		"HyperLogLog estimate should be within 15%% of the true cardinality")
}

func TestHyperLogLogMergeUnionsRegisters(t *testing.T) {
	b := seededBuilder(21)
	a, err := NewHyperLogLog(b, 64)
	require.NoError(t, err)
	other, err := NewHyperLogLog(b, 64)
	require.NoError(t, err)
	other.hash = a.hash // same hash so registers line up identically

	for i := uint32(0); i < 100; i++ {
		a.Add(FlowKeyFromUint32(i))
	}
	for i := uint32(50); i < 150; i++ {
		other.Add(FlowKeyFromUint32(i))
	}
	beforeMax := make([]uint8, len(a.registers))
	copy(beforeMax, a.registers)

	require.NoError(t, a.Merge(other))
	for i, r := range a.registers {
		want := beforeMax[i]
		if other.registers[i] > want {
			want = other.registers[i]
		}
		require.Equal(t, want, r)
	}
}

func TestFlajoletMartinEstimateWithinRange(t *testing.T) {
	b := seededBuilder(22)
	fm, err := NewFlajoletMartin(b, 32)
	require.NoError(t, err)

	const distinct = 5000
	for i := uint32(0); i < distinct; i++ {
		fm.Add(FlowKeyFromUint32(i))
	}
	est := fm.Cardinality()
	require.Greater(t, est, int64(0))
	require.InEpsilon(t, float64(distinct), float64(est), 2.0,
		"FlajoletMartin's order-of-magnitude estimate should be in the right neighborhood")
}

func TestFlajoletMartinMergeIsUnion(t *testing.T) {
	b := seededBuilder(23)
	a, err := NewFlajoletMartin(b, 8)
	require.NoError(t, err)
	other, err := NewFlajoletMartin(b, 8)
	require.NoError(t, err)
	other.hashes = a.hashes

	a.Add(FlowKeyFromUint32(1))
	other.Add(FlowKeyFromUint32(2))
	want := make([]uint64, len(a.bitmaps))
	for i := range want {
		want[i] = a.bitmaps[i] | other.bitmaps[i]
	}
	require.NoError(t, a.Merge(other))
	require.Equal(t, want, a.bitmaps)
}
