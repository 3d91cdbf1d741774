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
	"math"
	"testing"

	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint64ScanValue(t *testing.T) {
	tests := []struct {
		value    types.Uint64
		expected string
	}{
		{value: 0, expected: "0"},
		{value: 123, expected: "123"},
		{value: 1 << 63, expected: "9223372036854775808"},
		{value: math.MaxUint64, expected: "18446744073709551615"},
	}
	for _, test := range tests {
		out, err := test.value.Value()
		require.NoError(t, err)
		assert.Equal(t, test.expected, out)
		var fromString types.Uint64
		require.NoError(t, fromString.Scan(out))
		assert.Equal(t, test.value, fromString)
		// mysql hands text columns back as bytes
		var fromBytes types.Uint64
		require.NoError(t, fromBytes.Scan([]byte(test.expected)))
		assert.Equal(t, test.value, fromBytes)
	}
}

func TestUint64ScanErrors(t *testing.T) {
	var u types.Uint64
	require.Error(t, u.Scan(int64(5)))
	require.Error(t, u.Scan("-1"))
	require.Error(t, u.Scan("18446744073709551616"))
}
