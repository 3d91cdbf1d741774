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

package postgres

import (
	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/database/types"
)

func (d *MetadataStorePostgres) AddOverrideVote(
	vote *models.OverrideVote,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Create(vote); result.Error != nil {
		return result.Error
	}
	d.metrics.records.WithLabelValues("override_vote").Inc()
	return nil
}

// GetOverrideVotes returns the votes cast in one round of the named override
func (d *MetadataStorePostgres) GetOverrideVotes(
	kind string,
	nonce uint64,
	txn types.Txn,
) ([]models.OverrideVote, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.OverrideVote
	if result := db.Where("kind = ? AND nonce = ?", kind, types.Uint64(nonce)).
		Order("id").
		Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (d *MetadataStorePostgres) AddOverrideActivation(
	activation *models.OverrideActivation,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Create(activation); result.Error != nil {
		return result.Error
	}
	d.metrics.records.WithLabelValues("override_activation").Inc()
	return nil
}

func (d *MetadataStorePostgres) GetOverrideActivations(
	kind string,
	txn types.Txn,
) ([]models.OverrideActivation, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.OverrideActivation
	if result := db.Where("kind = ?", kind).
		Order("id").
		Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
