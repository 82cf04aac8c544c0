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

func TestLDSketchBoundsBracketTruth(t *testing.T) {
	b := seededBuilder(40)
	s, err := NewLDSketch(b, 3, 8, 100, 0.1)
	require.NoError(t, err)

	truth := make(map[uint32]int64)
	for i := uint32(0); i < 500; i++ {
		key := i % 13
		s.Update(FlowKeyFromUint32(key), 1)
		truth[key]++
	}

	for key, want := range truth {
		lower, upper := s.Query(FlowKeyFromUint32(key))
		require.LessOrEqual(t, lower, want, "lower bound must never exceed the truth")
		require.GreaterOrEqual(t, upper, want, "upper bound must never undershoot the truth")
	}
}

func TestLDSketchHeavyHittersFindsDominantKey(t *testing.T) {
	b := seededBuilder(41)
	s, err := NewLDSketch(b, 3, 4, 50, 0.1)
	require.NoError(t, err)

	heavy := FlowKeyFromUint32(1)
	for i := 0; i < 200; i++ {
		s.Update(heavy, 1)
	}
	hh := s.HeavyHitters()
	require.Contains(t, hh, heavy.String())
}

func TestLDSketchClearResetsBuckets(t *testing.T) {
	b := seededBuilder(42)
	s, err := NewLDSketch(b, 2, 4, 10, 0.1)
	require.NoError(t, err)
	s.Update(FlowKeyFromUint32(1), 5)
	s.Clear()
	lower, upper := s.Query(FlowKeyFromUint32(1))
	require.Equal(t, int64(0), lower)
	require.Equal(t, int64(0), upper)
}
