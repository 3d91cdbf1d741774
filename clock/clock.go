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
	"sync"
	"time"
)

// Clock supplies the host's coarse, monotonic notion of "now" in seconds.
// Every timelock, execution window, round and halt duration is measured
// against it.
type Clock interface {
	Now() uint64
}

// System reads the wall clock and never reports a value lower than one it
// already returned.
type System struct {
	nowFunc func() time.Time
	last    uint64
	mu      sync.Mutex
}

func NewSystem() *System {
	return &System{nowFunc: time.Now}
}

func (s *System) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := uint64(s.nowFunc().Unix()) //nolint:gosec // wall clock is after 1970
	if now < s.last {
		return s.last
	}
	s.last = now
	return now
}

// Manual is a clock that only moves when told to. It is used by tests and by
// hosts that derive time from an external ordered log.
type Manual struct {
	now uint64
	mu  sync.RWMutex
}

func NewManual(start uint64) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set moves the clock to t. Attempts to move it backward are ignored.
func (m *Manual) Set(t uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t > m.now {
		m.now = t
	}
}

func (m *Manual) Advance(seconds uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += seconds
	return m.now
}
