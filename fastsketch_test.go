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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFastSketchQueryRecoversExactCountWhenSparse(t *testing.T) {
	b := seededBuilder(110)
	f, err := NewFastSketch(b, 2, 4, 8)
	require.NoError(t, err)

	key := FlowKeyFromUint32(5)
	f.Update(key, 100)
	require.Equal(t, int64(100), f.Query(key))
}

func TestFastSketchDetectAnomalyRecoversHeavyKey(t *testing.T) {
	b := seededBuilder(111)
	f, err := NewFastSketch(b, 2, 4, 8)
	require.NoError(t, err)

	key := FlowKeyFromUint32(5)
	f.Update(key, 100)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 5)
	want := FlowKeyFromBytes(buf[:])

	found := f.DetectAnomaly(50)
	require.Equal(t, int64(100), found[want.String()])
}

func TestFastSketchMergeFromSumsCounters(t *testing.T) {
	b := seededBuilder(112)
	a, err := NewFastSketch(b, 2, 4, 8)
	require.NoError(t, err)
	other, err := NewFastSketch(b, 2, 4, 8)
	require.NoError(t, err)
	other.hashes = a.hashes

	key := FlowKeyFromUint32(5)
	a.Update(key, 10)
	other.Update(key, 20)

	require.NoError(t, a.MergeFrom(other))
	require.Equal(t, int64(30), a.Query(key))
}

func TestFastSketchClearResetsTable(t *testing.T) {
	b := seededBuilder(113)
	f, err := NewFastSketch(b, 2, 4, 8)
	require.NoError(t, err)
	key := FlowKeyFromUint32(5)
	f.Update(key, 10)
	f.Clear()
	require.Equal(t, int64(0), f.Query(key))
}
