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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := newMetrics()
	require.EqualValues(t, 0, m.Updates())
	require.EqualValues(t, 0, m.Queries())
	require.EqualValues(t, 0, m.Saturations())
	require.EqualValues(t, 0, m.DecodeAttempts())

	m.add(metricUpdates, 3)
	m.add(metricQueries, 2)
	m.add(metricSaturations, 1)
	m.add(metricDecodes, 4)

	require.EqualValues(t, 3, m.Updates())
	require.EqualValues(t, 2, m.Queries())
	require.EqualValues(t, 1, m.Saturations())
	require.EqualValues(t, 4, m.DecodeAttempts())

	m.Clear()
	require.EqualValues(t, 0, m.Updates())
	require.EqualValues(t, 0, m.Queries())
	require.EqualValues(t, 0, m.Saturations())
	require.EqualValues(t, 0, m.DecodeAttempts())
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	require.EqualValues(t, 0, m.Updates())
	require.NotPanics(t, func() { m.add(metricUpdates, 1) })
	require.NotPanics(t, func() { m.Clear() })
	require.Equal(t, "", m.String())
}

func TestMetricsStringRendersEveryCounter(t *testing.T) {
	m := newMetrics()
	m.add(metricUpdates, 7)
	m.add(metricDecodes, 2)
	s := m.String()
	require.True(t, strings.Contains(s, "updates: 7"))
	require.True(t, strings.Contains(s, "queries: 0"))
	require.True(t, strings.Contains(s, "saturations: 0"))
	require.True(t, strings.Contains(s, "decodes: 2"))
}

func TestCountMinMetricsTrackUpdatesAndQueries(t *testing.T) {
	b := seededBuilder(900)
	cm, err := NewCountMin(b, 3, 32)
	require.NoError(t, err)

	key := FlowKeyFromUint32(1)
	for i := 0; i < 5; i++ {
		cm.Update(key, 1)
	}
	cm.Query(key)
	cm.Query(key)

	require.EqualValues(t, 5, cm.Metrics().Updates())
	require.EqualValues(t, 2, cm.Metrics().Queries())
	require.True(t, strings.Contains(cm.String(), "CountMin{size="))
}
