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

package types_test

import (
	"bytes"
	"testing"

	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint64KeyOrdering(t *testing.T) {
	values := []uint64{0, 1, 255, 256, 65535, 1 << 40, ^uint64(0)}
	for i := 1; i < len(values); i++ {
		prev := types.Uint64Key(values[i-1])
		cur := types.Uint64Key(values[i])
		assert.Equal(t, -1, bytes.Compare(prev, cur), "ordering broken at %d", values[i])
	}
}

func TestUint64KeyRoundTrip(t *testing.T) {
	v, err := types.Uint64FromKey(types.Uint64Key(123456789))
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), v)
	_, err = types.Uint64FromKey([]byte{0x01})
	require.Error(t, err)
}
