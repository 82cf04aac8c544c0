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

func TestBloomNoFalseNegatives(t *testing.T) {
	b := seededBuilder(10)
	f, err := NewBloom(b, 2048, 4)
	require.NoError(t, err)

	inserted := make([]FlowKey, 0, 200)
	for i := uint32(0); i < 200; i++ {
		key := FlowKeyFromUint32(i)
		f.Insert(key)
		inserted = append(inserted, key)
	}
	for _, key := range inserted {
		require.True(t, f.Query(key), "Bloom filter must never report a false negative")
	}
}

func TestBloomClearResetsMembership(t *testing.T) {
	b := seededBuilder(11)
	f, err := NewBloom(b, 256, 3)
	require.NoError(t, err)
	f.Insert(FlowKeyFromUint32(1))
	require.True(t, f.Query(FlowKeyFromUint32(1)))
	f.Clear()
	require.False(t, f.Query(FlowKeyFromUint32(1)))
}

func TestCountingBloomInsertRemoveIsSymmetric(t *testing.T) {
	b := seededBuilder(12)
	f, err := NewCountingBloom(b, 1024, 3)
	require.NoError(t, err)

	key := FlowKeyFromUint32(42)
	other := FlowKeyFromUint32(43)

	f.Insert(key)
	f.Insert(other)
	require.True(t, f.Query(key))
	require.True(t, f.Query(other))

	f.Remove(key)
	require.False(t, f.Query(key), "removing the only insert of key must clear its counters")
	require.True(t, f.Query(other), "removing key must not disturb an unrelated resident")
}

func TestCountingBloomRoundTripManyInsertsThenRemoves(t *testing.T) {
	b := seededBuilder(13)
	f, err := NewCountingBloom(b, 1024, 2)
	require.NoError(t, err)

	key := FlowKeyFromUint32(7)
	for i := 0; i < 5; i++ {
		f.Insert(key)
	}
	for i := 0; i < 5; i++ {
		f.Remove(key)
	}
	require.False(t, f.Query(key))
}

func TestCountingBloomDumpRendersEveryCounter(t *testing.T) {
	b := seededBuilder(14)
	f, err := NewCountingBloom(b, 32, 2)
	require.NoError(t, err)
	f.Insert(FlowKeyFromUint32(1))
	require.NotEmpty(t, f.dump())
}
