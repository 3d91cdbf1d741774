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

package override

import (
	"github.com/blinklabs-io/gouroboros/cbor"
)

// HaltAnchor is the instant of the most recent halt. It can only move
// forward: there is no way to lower or clear it.
type HaltAnchor struct {
	ts uint64
}

// Raise moves the anchor to ts if ts is later, and reports whether it moved
func (h *HaltAnchor) Raise(ts uint64) bool {
	if ts <= h.ts {
		return false
	}
	h.ts = ts
	return true
}

func (h HaltAnchor) Get() uint64 {
	return h.ts
}

func (h HaltAnchor) MarshalCBOR() ([]byte, error) {
	return cbor.Encode(h.ts)
}

func (h *HaltAnchor) UnmarshalCBOR(data []byte) error {
	var ts uint64
	if _, err := cbor.Decode(data, &ts); err != nil {
		return err
	}
	h.ts = ts
	return nil
}
