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

package badger

import (
	"fmt"

	"github.com/blinklabs-io/vaultguard/database/types"
)

// commitTimestampKey starts with 0x00 so it can never fall inside a component
// namespace, which are all tag + 0x00 with a non-empty tag
var commitTimestampKey = []byte("\x00commit_timestamp")

// GetCommitTimestamp returns types.ErrBlobKeyNotFound before the first commit
func (d *BlobStoreBadger) GetCommitTimestamp() (int64, error) {
	txn := d.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck

	val, err := d.Get(txn, commitTimestampKey)
	if err != nil {
		return 0, err
	}
	ts, err := types.Uint64FromKey(val)
	if err != nil {
		return 0, fmt.Errorf("decode commit timestamp: %w", err)
	}
	return int64(ts), nil //nolint:gosec
}

func (d *BlobStoreBadger) SetCommitTimestamp(
	timestamp int64,
	txn types.Txn,
) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	return d.Set(txn, commitTimestampKey, types.Uint64Key(uint64(timestamp))) //nolint:gosec
}
