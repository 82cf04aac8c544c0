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

func TestMracQueryIsNeverLessThanTrueCount(t *testing.T) {
	b := seededBuilder(130)
	m, err := NewMrac(b, 997)
	require.NoError(t, err)

	truth := make(map[uint32]int64)
	for i := uint32(0); i < 500; i++ {
		key := i % 29
		m.Update(FlowKeyFromUint32(key), 1)
		truth[key]++
	}
	for key, want := range truth {
		require.GreaterOrEqual(t, m.Query(FlowKeyFromUint32(key)), want)
	}
}

func TestMracEstimateDistributionSumsToOne(t *testing.T) {
	b := seededBuilder(131)
	m, err := NewMrac(b, 101)
	require.NoError(t, err)

	for i := uint32(0); i < 300; i++ {
		m.Update(FlowKeyFromUint32(i%17), 1)
	}
	dist := m.EstimateDistribution()
	var total float64
	for _, frac := range dist {
		total += frac
	}
	require.InDelta(t, 1.0, total, 1e-9)
}

func TestMracMergeFromSumsCounters(t *testing.T) {
	b := seededBuilder(133)
	a, err := NewMrac(b, 31)
	require.NoError(t, err)
	other, err := NewMrac(b, 31)
	require.NoError(t, err)
	other.hash = a.hash

	key := FlowKeyFromUint32(1)
	a.Update(key, 3)
	other.Update(key, 4)

	require.NoError(t, a.MergeFrom(other))
	require.Equal(t, int64(7), a.Query(key))
}

func TestMracClearZeroesTable(t *testing.T) {
	b := seededBuilder(132)
	m, err := NewMrac(b, 31)
	require.NoError(t, err)
	m.Update(FlowKeyFromUint32(1), 10)
	m.Clear()
	require.Equal(t, int64(0), m.Query(FlowKeyFromUint32(1)))
}
