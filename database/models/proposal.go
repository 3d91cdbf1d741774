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

package models

import (
	"errors"

	"github.com/blinklabs-io/vaultguard/database/types"
)

var ErrProposalNotFound = errors.New("proposal not found")

// Proposal is the archived creation record of a governor proposal. The
// canonical proposal state lives in the blob store, this row exists for
// listing and history.
type Proposal struct {
	ID              uint         `gorm:"primarykey"`
	ProposalID      types.Uint64 `gorm:"uniqueIndex;type:varchar(20);not null"`
	Proposer        string       `gorm:"index;size:255;not null"`
	Strategy        string       `gorm:"size:64;not null"`
	Metadata        string
	SubmittedAt     types.Uint64 `gorm:"type:varchar(20);not null"`
	TimelockPeriod  types.Uint64 `gorm:"type:varchar(20);not null"`
	ExecutionPeriod types.Uint64 `gorm:"type:varchar(20);not null"`
	TxCount         int          `gorm:"not null"`
	// Populated by the store on read, never persisted on this row
	Transactions []ProposalTransaction `gorm:"-"`
}

func (Proposal) TableName() string {
	return "proposal"
}

// ProposalTransaction keeps the full transaction data committed to by a
// proposal, so an executor can rebuild the batch later
type ProposalTransaction struct {
	ID         uint         `gorm:"primarykey"`
	ProposalID types.Uint64 `gorm:"uniqueIndex:idx_proposal_tx,priority:1;type:varchar(20);not null"`
	TxIndex    int          `gorm:"uniqueIndex:idx_proposal_tx,priority:2;not null"`
	Hash       []byte       `gorm:"size:32;not null"`
	Target     string       `gorm:"not null"`
	Value      types.Uint64 `gorm:"type:varchar(20);not null"`
	Payload    []byte
	Kind       uint8 `gorm:"not null"`
}

func (ProposalTransaction) TableName() string {
	return "proposal_transaction"
}

// ProposalExecution records one successful ExecuteProposal call
type ProposalExecution struct {
	ID         uint         `gorm:"primarykey"`
	ProposalID types.Uint64 `gorm:"index;type:varchar(20);not null"`
	Executor   string       `gorm:"not null"`
	FirstIndex int          `gorm:"not null"`
	Count      int          `gorm:"not null"`
	ExecutedAt types.Uint64 `gorm:"type:varchar(20);not null"`
}

func (ProposalExecution) TableName() string {
	return "proposal_execution"
}
