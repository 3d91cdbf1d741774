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

package governor

import (
	"context"

	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
)

// Strategy decides whether a proposal's vote passed. VotingEndsAt is the
// instant the vote resolved, which is where the timelock starts.
type Strategy interface {
	IsPassed(txn *database.Txn, id uint64) (bool, error)
	IsFailed(txn *database.Txn, id uint64) (bool, error)
	VotingEndsAt(txn *database.Txn, id uint64) (uint64, error)
}

// ProposalInitializer is implemented by strategies that keep per-proposal
// state. They are told when a proposal using them is submitted.
type ProposalInitializer interface {
	InitializeProposal(txn *database.Txn, id uint64) error
}

type ProposerAuthorizer interface {
	IsAuthorized(txn *database.Txn, caller common.Address, authData []byte) (bool, error)
}

// Executor dispatches a single transaction
type Executor interface {
	Execute(
		ctx context.Context,
		txn *database.Txn,
		tx common.Transaction,
		dctx common.DispatchContext,
	) (bool, error)
}
