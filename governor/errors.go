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
	"errors"
	"fmt"

	"github.com/blinklabs-io/vaultguard/common"
)

var (
	ErrInvalidProposal       = errors.New("invalid proposal")
	ErrInvalidStrategy       = errors.New("invalid strategy")
	ErrInvalidProposer       = errors.New("invalid proposer")
	ErrInvalidTxs            = errors.New("invalid transactions")
	ErrInvalidTxHash         = errors.New("transaction hash mismatch")
	ErrTxFailed              = errors.New("transaction failed")
	ErrProposalNotExecutable = errors.New("proposal not executable")
	ErrUnauthorized          = errors.New("caller is not the owner")
	ErrStrategyExists        = errors.New("strategy already registered")
)

// TxFailedError identifies the transaction the vault reported as failed
type TxFailedError struct {
	ProposalID uint64
	Index      int
	Hash       common.Hash
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf(
		"transaction failed: proposal %d, index %d, hash %s",
		e.ProposalID,
		e.Index,
		e.Hash.String(),
	)
}

func (e *TxFailedError) Unwrap() error {
	return ErrTxFailed
}
