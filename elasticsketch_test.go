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

func TestElasticSketchHeavyPartIsExactWhenUncontended(t *testing.T) {
	b := seededBuilder(70)
	s, err := NewElasticSketch(b, 17, 4, 3, 64, 1<<20)
	require.NoError(t, err)

	key := FlowKeyFromUint32(1)
	for i := 0; i < 50; i++ {
		s.Update(key, 1)
	}
	val, flag := s.heavypartQuery(key)
	require.Equal(t, int64(50), val)
	require.False(t, flag, "a resident that was never evicted into keeps its flag clear")
	require.Equal(t, int64(50), s.Query(key))
}

func TestElasticSketchQueryNeverUnderestimates(t *testing.T) {
	b := seededBuilder(71)
	s, err := NewElasticSketch(b, 11, 2, 2, 32, 1<<20)
	require.NoError(t, err)

	truth := make(map[uint32]int64)
	for i := uint32(0); i < 400; i++ {
		key := i % 23
		s.Update(FlowKeyFromUint32(key), 1)
		truth[key]++
	}
	for key, want := range truth {
		got := s.Query(FlowKeyFromUint32(key))
		require.GreaterOrEqual(t, got, want, "heavy+light combined estimate must never underestimate")
	}
}

func TestElasticSketchMergeFromSumsLightPart(t *testing.T) {
	b := seededBuilder(73)
	a, err := NewElasticSketch(b, 11, 2, 2, 32, 1<<20)
	require.NoError(t, err)
	other, err := NewElasticSketch(b, 11, 2, 2, 32, 1<<20)
	require.NoError(t, err)
	other.light.hashes = a.light.hashes

	key := FlowKeyFromUint32(500) // written straight into the light part below
	for i := 0; i < 3; i++ {
		a.light.Update(key, 5)
	}
	other.light.Update(key, 10)

	before := a.light.Query(key)
	require.NoError(t, a.MergeFrom(other))
	require.Equal(t, before+10, a.light.Query(key))
}

func TestElasticSketchClearZeroesHeavyAndLight(t *testing.T) {
	b := seededBuilder(72)
	s, err := NewElasticSketch(b, 7, 2, 2, 16, 1<<20)
	require.NoError(t, err)

	s.Update(FlowKeyFromUint32(1), 5)
	s.Clear()
	require.Equal(t, int64(0), s.Query(FlowKeyFromUint32(1)))
}
