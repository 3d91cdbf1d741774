// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVacuumInterval(t *testing.T) {
	tests := []struct {
		name      string
		opts      []SqliteOptionFunc
		scheduled bool
		interval  time.Duration
	}{
		{
			name:      "default",
			scheduled: true,
			interval:  defaultVacuumInterval,
		},
		{
			name:      "custom",
			opts:      []SqliteOptionFunc{WithVacuumInterval(time.Hour)},
			scheduled: true,
			interval:  time.Hour,
		},
		{
			name: "disabled",
			opts: []SqliteOptionFunc{WithVacuumInterval(0)},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			opts := append([]SqliteOptionFunc{WithDataDir(t.TempDir())}, test.opts...)
			store, err := New(opts...)
			require.NoError(t, err)
			defer store.Close()
			assert.Equal(t, test.interval, store.vacuumInterval)
			store.timerMutex.Lock()
			defer store.timerMutex.Unlock()
			assert.Equal(t, test.scheduled, store.timerVacuum != nil)
		})
	}
}

func TestInMemoryStoreNeverVacuums(t *testing.T) {
	store, err := New(WithVacuumInterval(time.Millisecond))
	require.NoError(t, err)
	defer store.Close()
	store.timerMutex.Lock()
	defer store.timerMutex.Unlock()
	assert.Nil(t, store.timerVacuum)
}

func TestCommitMarkerUpsert(t *testing.T) {
	store, err := New()
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SetCommitTimestamp(10, nil))
	require.NoError(t, store.SetCommitTimestamp(20, nil))
	var count int64
	require.NoError(t, store.db.Model(&commitMarker{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
