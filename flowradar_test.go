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

func TestFlowRadarDecodesSparseFlowsExactly(t *testing.T) {
	b := seededBuilder(60)
	fr, err := NewFlowRadar(b, 4096, 4, 997, 3, 4)
	require.NoError(t, err)

	truth := map[string]int64{}
	for i := uint32(0); i < 10; i++ {
		key := FlowKeyFromUint32(i)
		size := int64(i + 1)
		fr.Update(key, size)
		truth[key.String()] = size
	}

	got := fr.Decode()
	for k, want := range truth {
		require.Equal(t, want, got[k], "a lightly loaded FlowRadar must fully decode every flow")
	}
	require.Len(t, got, len(truth))
}

func TestFlowRadarRepeatedUpdatesAccumulateSize(t *testing.T) {
	b := seededBuilder(61)
	fr, err := NewFlowRadar(b, 2048, 3, 499, 3, 4)
	require.NoError(t, err)

	key := FlowKeyFromUint32(5)
	for i := 0; i < 7; i++ {
		fr.Update(key, 1)
	}
	got := fr.Decode()
	require.Equal(t, int64(7), got[key.String()])
}

func TestFlowRadarClearEmptiesDecode(t *testing.T) {
	b := seededBuilder(62)
	fr, err := NewFlowRadar(b, 1024, 3, 257, 3, 4)
	require.NoError(t, err)

	fr.Update(FlowKeyFromUint32(1), 10)
	fr.Clear()
	require.Empty(t, fr.Decode())
}
