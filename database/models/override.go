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

import "github.com/blinklabs-io/vaultguard/database/types"

// OverrideVote is the archived record of a single override vote
type OverrideVote struct {
	ID      uint         `gorm:"primarykey"`
	Kind    string       `gorm:"uniqueIndex:idx_override_vote,priority:1;size:16;not null"`
	Nonce   types.Uint64 `gorm:"uniqueIndex:idx_override_vote,priority:2;type:varchar(20);not null"`
	Voter   string       `gorm:"uniqueIndex:idx_override_vote,priority:3;size:255;not null"`
	Weight  types.Uint64 `gorm:"type:varchar(20);not null"`
	VotedAt types.Uint64 `gorm:"type:varchar(20);not null"`
}

func (OverrideVote) TableName() string {
	return "override_vote"
}

// OverrideActivation is written each time a veto or freeze goes from
// inactive to active
type OverrideActivation struct {
	ID          uint         `gorm:"primarykey"`
	Kind        string       `gorm:"index;size:16;not null"`
	Nonce       types.Uint64 `gorm:"type:varchar(20);not null"`
	VoteCount   types.Uint64 `gorm:"type:varchar(20);not null"`
	Threshold   types.Uint64 `gorm:"type:varchar(20);not null"`
	ActivatedAt types.Uint64 `gorm:"type:varchar(20);not null"`
}

func (OverrideActivation) TableName() string {
	return "override_activation"
}
