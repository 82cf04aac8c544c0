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

func TestMVSketchCandidateVoteNeverNegative(t *testing.T) {
	b := seededBuilder(30)
	s, err := NewMVSketch(b, 4, 32)
	require.NoError(t, err)

	for i := uint32(0); i < 2000; i++ {
		s.Update(FlowKeyFromUint32(i%29), 1)
	}
	for i := range s.table {
		require.GreaterOrEqual(t, s.table[i].c, int64(0), "C must never go negative")
		require.LessOrEqual(t, s.table[i].c, s.table[i].v, "C must never exceed V")
	}
}

func TestMVSketchRecoversHeavyHitter(t *testing.T) {
	b := seededBuilder(31)
	s, err := NewMVSketch(b, 4, 16)
	require.NoError(t, err)

	heavy := FlowKeyFromUint32(5)
	for i := 0; i < 300; i++ {
		s.Update(heavy, 1)
	}
	for i := uint32(6); i < 40; i++ {
		s.Update(FlowKeyFromUint32(i), 1)
	}

	hh := s.HeavyHitters(150)
	require.Contains(t, hh, heavy.String())
}

func TestMVSketchClearZeroesEverything(t *testing.T) {
	b := seededBuilder(32)
	s, err := NewMVSketch(b, 2, 8)
	require.NoError(t, err)
	s.Update(FlowKeyFromUint32(1), 10)
	s.Clear()
	require.Equal(t, int64(0), s.Query(FlowKeyFromUint32(1)))
}
