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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemNeverGoesBackward(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	s := &System{nowFunc: func() time.Time { return current }}
	assert.Equal(t, uint64(1_700_000_000), s.Now())
	current = current.Add(-time.Hour)
	assert.Equal(t, uint64(1_700_000_000), s.Now())
	current = time.Unix(1_700_000_500, 0)
	assert.Equal(t, uint64(1_700_000_500), s.Now())
}

func TestManual(t *testing.T) {
	m := NewManual(100)
	assert.Equal(t, uint64(100), m.Now())
	assert.Equal(t, uint64(150), m.Advance(50))
	m.Set(120)
	assert.Equal(t, uint64(150), m.Now())
	m.Set(200)
	assert.Equal(t, uint64(200), m.Now())
}
