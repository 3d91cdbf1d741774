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

package mysql

import (
	"errors"

	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/database/types"
	"gorm.io/gorm"
)

// AddProposal archives a proposal along with its full transaction list
func (d *MetadataStoreMysql) AddProposal(
	proposal *models.Proposal,
	txs []models.ProposalTransaction,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	proposal.TxCount = len(txs)
	if result := db.Create(proposal); result.Error != nil {
		return result.Error
	}
	d.metrics.records.WithLabelValues("proposal").Inc()
	if len(txs) == 0 {
		return nil
	}
	for i := range txs {
		txs[i].ProposalID = proposal.ProposalID
		txs[i].TxIndex = i
	}
	if result := db.Create(&txs); result.Error != nil {
		return result.Error
	}
	d.metrics.records.WithLabelValues("proposal_transaction").Add(float64(len(txs)))
	return nil
}

// GetProposal returns the archived proposal with its transactions in order
func (d *MetadataStoreMysql) GetProposal(
	proposalID uint64,
	txn types.Txn,
) (*models.Proposal, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var proposal models.Proposal
	if result := db.Where("proposal_id = ?", types.Uint64(proposalID)).First(&proposal); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrProposalNotFound
		}
		return nil, result.Error
	}
	if result := db.Where("proposal_id = ?", types.Uint64(proposalID)).
		Order("tx_index").
		Find(&proposal.Transactions); result.Error != nil {
		return nil, result.Error
	}
	return &proposal, nil
}

// GetProposals lists archived proposals by ascending id. A limit <= 0 returns all.
func (d *MetadataStoreMysql) GetProposals(
	offset int,
	limit int,
	txn types.Txn,
) ([]models.Proposal, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	// proposal_id is stored as text, rows are inserted in id order
	query := db.Order("id").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ret []models.Proposal
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (d *MetadataStoreMysql) AddProposalExecution(
	execution *models.ProposalExecution,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Create(execution); result.Error != nil {
		return result.Error
	}
	d.metrics.records.WithLabelValues("proposal_execution").Inc()
	return nil
}

func (d *MetadataStoreMysql) GetProposalExecutions(
	proposalID uint64,
	txn types.Txn,
) ([]models.ProposalExecution, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.ProposalExecution
	if result := db.Where("proposal_id = ?", types.Uint64(proposalID)).
		Order("id").
		Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
