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

package common

import "errors"

// ErrNoCheckpoint is returned by weight sources when a voter has no
// historical checkpoint at all. Callers fall back to the current weight.
var ErrNoCheckpoint = errors.New("no weight checkpoint")

// DispatchContext describes why the vault is being asked to run a transaction.
// It is built by the proposal registry and passed through the vault to the
// execution guard, so the guard never needs a reference to the registry.
type DispatchContext struct {
	// Caller is the module that requested the dispatch
	Caller Address
	// ProposalID is only meaningful when HasProposal is set
	ProposalID uint64
	// TimelockStart is the instant the authorizing proposal entered its timelock
	TimelockStart uint64
	// Index is the position of the transaction within its proposal
	Index       int
	HasProposal bool
}

// ForProposal builds the dispatch context for a transaction authorized by a proposal
func ForProposal(
	caller Address,
	proposalID uint64,
	timelockStart uint64,
	index int,
) DispatchContext {
	return DispatchContext{
		Caller:        caller,
		ProposalID:    proposalID,
		TimelockStart: timelockStart,
		Index:         index,
		HasProposal:   true,
	}
}
