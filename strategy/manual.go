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

package strategy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
)

const (
	ManualName         = "manual"
	ManualNamespaceTag = "vaultguard/strategy/manual/v1"
)

type outcome uint8

const (
	outcomePending outcome = 0
	outcomePassed  outcome = 1
	outcomeFailed  outcome = 2
)

type ManualConfig struct {
	Logger *slog.Logger
	Clock  clock.Clock
	Owner  common.Address
}

// Manual lets a single owner decide each proposal. Voting ends the moment
// the owner resolves it.
type Manual struct {
	config ManualConfig
	ns     database.Namespace
}

type manualProposal struct {
	_       struct{} `cbor:",toarray"`
	Outcome uint8
	EndsAt  uint64
}

func NewManual(cfg ManualConfig) *Manual {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "strategy", "strategy", ManualName)
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	return &Manual{
		config: cfg,
		ns:     database.NewNamespace(ManualNamespaceTag),
	}
}

func (m *Manual) Name() string {
	return ManualName
}

func (m *Manual) load(txn *database.Txn, id uint64) (*manualProposal, error) {
	var p manualProposal
	if err := m.ns.GetCbor(txn, proposalKey(id), &p); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProposal, id)
		}
		return nil, err
	}
	return &p, nil
}

func (m *Manual) InitializeProposal(txn *database.Txn, id uint64) error {
	exists, err := m.ns.Has(txn, proposalKey(id))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %d", ErrProposalExists, id)
	}
	return m.ns.SetCbor(txn, proposalKey(id), &manualProposal{})
}

// Resolve records the owner's decision
func (m *Manual) Resolve(
	txn *database.Txn,
	caller common.Address,
	id uint64,
	passed bool,
) error {
	if caller != m.config.Owner {
		return ErrUnauthorized
	}
	p, err := m.load(txn, id)
	if err != nil {
		return err
	}
	if outcome(p.Outcome) != outcomePending {
		return ErrAlreadyResolved
	}
	p.Outcome = uint8(outcomeFailed)
	if passed {
		p.Outcome = uint8(outcomePassed)
	}
	p.EndsAt = m.config.Clock.Now()
	if err := m.ns.SetCbor(txn, proposalKey(id), p); err != nil {
		return err
	}
	m.config.Logger.Info(
		"proposal resolved",
		"proposal_id", id,
		"passed", passed,
	)
	return nil
}

func (m *Manual) IsPassed(txn *database.Txn, id uint64) (bool, error) {
	p, err := m.load(txn, id)
	if err != nil {
		return false, err
	}
	return outcome(p.Outcome) == outcomePassed, nil
}

func (m *Manual) IsFailed(txn *database.Txn, id uint64) (bool, error) {
	p, err := m.load(txn, id)
	if err != nil {
		return false, err
	}
	return outcome(p.Outcome) == outcomeFailed, nil
}

// VotingEndsAt is zero while the proposal is unresolved
func (m *Manual) VotingEndsAt(txn *database.Txn, id uint64) (uint64, error) {
	p, err := m.load(txn, id)
	if err != nil {
		return 0, err
	}
	return p.EndsAt, nil
}
