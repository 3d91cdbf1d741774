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

import "gorm.io/gorm"

type postgresTxn struct {
	store    *MetadataStorePostgres
	tx       *gorm.DB
	finished bool
}

func (t *postgresTxn) Commit() error {
	if t.finished {
		return nil
	}
	if t.tx.Error != nil {
		return t.tx.Error
	}
	t.finished = true
	if err := t.tx.Commit().Error; err != nil {
		t.store.metrics.commitErrors.Inc()
		return err
	}
	t.store.metrics.commits.Inc()
	return nil
}

func (t *postgresTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.tx.Error != nil {
		return nil
	}
	return t.tx.Rollback().Error
}
