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

package metadata

import (
	"fmt"

	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/database/plugin"
	"github.com/blinklabs-io/vaultguard/database/types"
	"gorm.io/gorm"
)

// MetadataStore holds the relational archive of proposals, executions and
// override activity
type MetadataStore interface {
	plugin.Plugin

	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Proposals
	AddProposal(*models.Proposal, []models.ProposalTransaction, types.Txn) error
	GetProposal(uint64, types.Txn) (*models.Proposal, error)
	GetProposals(offset int, limit int, txn types.Txn) ([]models.Proposal, error)
	AddProposalExecution(*models.ProposalExecution, types.Txn) error
	GetProposalExecutions(uint64, types.Txn) ([]models.ProposalExecution, error)

	// Overrides
	AddOverrideVote(*models.OverrideVote, types.Txn) error
	GetOverrideVotes(kind string, nonce uint64, txn types.Txn) ([]models.OverrideVote, error)
	AddOverrideActivation(*models.OverrideActivation, types.Txn) error
	GetOverrideActivations(kind string, txn types.Txn) ([]models.OverrideActivation, error)
}

func New(pluginName string, opts plugin.PluginOptions) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, opts)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
