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

func TestDeltoidRecoversSoleHeavyKey(t *testing.T) {
	b := seededBuilder(100)
	d, err := NewDeltoid(b, 3, 4, 4)
	require.NoError(t, err)

	heavy := FlowKeyFromUint32(123456)
	d.Update(heavy, 500)

	hh := d.HeavyHitters(100)
	require.Equal(t, map[string]int64{heavy.String(): 500}, hh)
}

func TestDeltoidHeavyChangersFindsTheChangedKey(t *testing.T) {
	b := seededBuilder(101)
	d1, err := NewDeltoid(b, 3, 4, 4)
	require.NoError(t, err)
	d2, err := NewDeltoid(b, 3, 4, 4)
	require.NoError(t, err)
	d2.hashes = d1.hashes // shared shape and hash family, as HeavyChangers requires

	changed := FlowKeyFromUint32(99)
	d1.Update(changed, 10)
	d2.Update(changed, 600)

	out, err := d1.HeavyChangers(200, d2)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{changed.String(): 590}, out)
}

func TestDeltoidClearZeroesQuery(t *testing.T) {
	b := seededBuilder(102)
	d, err := NewDeltoid(b, 2, 4, 4)
	require.NoError(t, err)

	d.Update(FlowKeyFromUint32(1), 50)
	d.Clear()
	require.Equal(t, int64(0), d.Query(FlowKeyFromUint32(1)))
}
