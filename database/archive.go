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

package database

import (
	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/database/types"
)

// The archive methods route to the metadata store using the metadata half
// of txn. A nil txn, or a read-only one, reads outside any transaction.

func (d *Database) metadataTxn(txn *Txn) types.Txn {
	if txn == nil {
		return nil
	}
	return txn.Metadata()
}

func (d *Database) AddProposal(
	proposal *models.Proposal,
	txs []models.ProposalTransaction,
	txn *Txn,
) error {
	return d.metadata.AddProposal(proposal, txs, d.metadataTxn(txn))
}

func (d *Database) GetProposal(
	proposalID uint64,
	txn *Txn,
) (*models.Proposal, error) {
	return d.metadata.GetProposal(proposalID, d.metadataTxn(txn))
}

func (d *Database) GetProposals(
	offset int,
	limit int,
	txn *Txn,
) ([]models.Proposal, error) {
	return d.metadata.GetProposals(offset, limit, d.metadataTxn(txn))
}

func (d *Database) AddProposalExecution(
	execution *models.ProposalExecution,
	txn *Txn,
) error {
	return d.metadata.AddProposalExecution(execution, d.metadataTxn(txn))
}

func (d *Database) GetProposalExecutions(
	proposalID uint64,
	txn *Txn,
) ([]models.ProposalExecution, error) {
	return d.metadata.GetProposalExecutions(proposalID, d.metadataTxn(txn))
}

func (d *Database) AddOverrideVote(vote *models.OverrideVote, txn *Txn) error {
	return d.metadata.AddOverrideVote(vote, d.metadataTxn(txn))
}

func (d *Database) GetOverrideVotes(
	kind string,
	nonce uint64,
	txn *Txn,
) ([]models.OverrideVote, error) {
	return d.metadata.GetOverrideVotes(kind, nonce, d.metadataTxn(txn))
}

func (d *Database) AddOverrideActivation(
	activation *models.OverrideActivation,
	txn *Txn,
) error {
	return d.metadata.AddOverrideActivation(activation, d.metadataTxn(txn))
}

func (d *Database) GetOverrideActivations(
	kind string,
	txn *Txn,
) ([]models.OverrideActivation, error) {
	return d.metadata.GetOverrideActivations(kind, d.metadataTxn(txn))
}
