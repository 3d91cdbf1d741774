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

// Package proposer decides who may submit proposals
package proposer

import (
	"errors"
	"slices"

	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/weight"
)

// Any authorizes every caller
type Any struct{}

func (Any) IsAuthorized(*database.Txn, common.Address, []byte) (bool, error) {
	return true, nil
}

// Allowlist authorizes a fixed set of addresses
type Allowlist struct {
	allowed []common.Address
}

func NewAllowlist(allowed ...common.Address) *Allowlist {
	ret := &Allowlist{allowed: slices.Clone(allowed)}
	slices.Sort(ret.allowed)
	return ret
}

func (a *Allowlist) IsAuthorized(
	_ *database.Txn,
	caller common.Address,
	_ []byte,
) (bool, error) {
	_, found := slices.BinarySearch(a.allowed, caller)
	return found, nil
}

func (a *Allowlist) Members() []common.Address {
	return slices.Clone(a.allowed)
}

// MinWeight authorizes callers holding at least Threshold voting weight
type MinWeight struct {
	source    weight.Source
	threshold uint64
}

func NewMinWeight(source weight.Source, threshold uint64) *MinWeight {
	return &MinWeight{source: source, threshold: threshold}
}

func (m *MinWeight) IsAuthorized(
	txn *database.Txn,
	caller common.Address,
	_ []byte,
) (bool, error) {
	if m.source == nil {
		return false, errors.New("no weight source configured")
	}
	w, err := m.source.CurrentWeight(txn, caller)
	if err != nil {
		return false, err
	}
	return w >= m.threshold, nil
}
