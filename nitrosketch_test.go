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

func TestNitroSketchAlwaysCorrectMatchesExactCountWhenSparse(t *testing.T) {
	b := seededBuilder(80)
	s, err := NewNitroSketch(b, 5, 101)
	require.NoError(t, err)

	key := FlowKeyFromUint32(1)
	for i := 0; i < 200; i++ {
		s.Update(key, 1)
	}
	require.Equal(t, int64(200), s.Query(key),
		"with prob 1.0 and a lone key, NitroSketch degenerates to an exact CountSketch")
}

func TestNitroSketchAdjustUpdateProbClampsLog2Range(t *testing.T) {
	b := seededBuilder(81)
	s, err := NewNitroSketch(b, 3, 31)
	require.NoError(t, err)

	s.AdjustUpdateProb(0.001) // logRate well below 0, clamps to index 0
	require.Equal(t, nitroUpdateProbs[0], s.updateProb)

	s.AdjustUpdateProb(1e9) // logRate well above 7, clamps to index 7
	require.Equal(t, nitroUpdateProbs[7], s.updateProb)
}

func TestNitroSketchClearResetsTableAndSquareSum(t *testing.T) {
	b := seededBuilder(82)
	s, err := NewNitroSketch(b, 3, 17)
	require.NoError(t, err)

	key := FlowKeyFromUint32(1)
	for i := 0; i < 50; i++ {
		s.Update(key, 1)
	}
	s.Clear()
	require.Equal(t, int64(0), s.Query(key))
	for _, v := range s.squareSum {
		require.Zero(t, v)
	}
}
