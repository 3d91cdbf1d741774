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

package sqlite

import (
	"errors"

	"github.com/blinklabs-io/vaultguard/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const commitMarkerID = 1

// commitMarker is the single row recording when the archive last committed.
// The blob store keeps the same value, a difference on open means a crash
// landed between the two commits.
type commitMarker struct {
	ID        uint  `gorm:"primarykey"`
	Timestamp int64 `gorm:"not null"`
}

func (commitMarker) TableName() string {
	return "archive_commit"
}

// GetCommitTimestamp returns zero for an archive that has never committed
func (d *MetadataStoreSqlite) GetCommitTimestamp() (int64, error) {
	var marker commitMarker
	err := d.db.Take(&marker, commitMarkerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return marker.Timestamp, nil
}

func (d *MetadataStoreSqlite) SetCommitTimestamp(
	timestamp int64,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	marker := commitMarker{ID: commitMarkerID, Timestamp: timestamp}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&marker).Error
}
