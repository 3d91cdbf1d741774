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
	"math/bits"

	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/weight"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LinearName         = "linear"
	LinearNamespaceTag = "vaultguard/strategy/linear/v1"

	// BasisDenominator is the fixed denominator of LinearConfig.Basis
	BasisDenominator uint64 = 1_000_000
)

type LinearConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Clock        clock.Clock
	WeightSource weight.Source
	// VotingPeriod is how long a proposal stays open, in seconds
	VotingPeriod uint64
	// Quorum is the minimum yes+abstain weight for a proposal to pass
	Quorum uint64
	// Basis is the share of yes among yes+no that must be exceeded, out of BasisDenominator
	Basis uint64
}

// Linear is token-weighted yes/no/abstain voting. Weight is read just before
// the proposal opened so that weight acquired during the vote does not count.
type Linear struct {
	config LinearConfig
	ns     database.Namespace
	votes  *prometheus.CounterVec
}

type linearProposal struct {
	_        struct{} `cbor:",toarray"`
	StartsAt uint64
	EndsAt   uint64
	Yes      uint64
	No       uint64
	Abstain  uint64
}

// LinearTally is a snapshot of a proposal's vote
type LinearTally struct {
	StartsAt uint64
	EndsAt   uint64
	Yes      uint64
	No       uint64
	Abstain  uint64
}

func NewLinear(cfg LinearConfig) (*Linear, error) {
	if cfg.VotingPeriod == 0 {
		return nil, fmt.Errorf("%w: voting period must be non-zero", ErrInvalidParameter)
	}
	if cfg.Basis >= BasisDenominator {
		return nil, fmt.Errorf(
			"%w: basis must be below %d",
			ErrInvalidParameter,
			BasisDenominator,
		)
	}
	if cfg.WeightSource == nil {
		return nil, fmt.Errorf("%w: weight source is required", ErrInvalidParameter)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "strategy", "strategy", LinearName)
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	return &Linear{
		config: cfg,
		ns:     database.NewNamespace(LinearNamespaceTag),
		votes: promauto.With(cfg.PromRegistry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategy_linear_votes_total",
				Help: "votes cast through the linear strategy, by choice",
			},
			[]string{"choice"},
		),
	}, nil
}

func (l *Linear) Name() string {
	return LinearName
}

func (l *Linear) load(txn *database.Txn, id uint64) (*linearProposal, error) {
	var p linearProposal
	if err := l.ns.GetCbor(txn, proposalKey(id), &p); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProposal, id)
		}
		return nil, err
	}
	return &p, nil
}

// InitializeProposal opens voting on a freshly submitted proposal
func (l *Linear) InitializeProposal(txn *database.Txn, id uint64) error {
	exists, err := l.ns.Has(txn, proposalKey(id))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %d", ErrProposalExists, id)
	}
	now := l.config.Clock.Now()
	p := linearProposal{
		StartsAt: now,
		EndsAt:   common.SaturatingAdd(now, l.config.VotingPeriod),
	}
	if err := l.ns.SetCbor(txn, proposalKey(id), &p); err != nil {
		return err
	}
	l.config.Logger.Debug(
		"voting opened",
		"proposal_id", id,
		"ends_at", p.EndsAt,
	)
	return nil
}

// snapshotWeight is the voter's weight just before voting opened
func (l *Linear) snapshotWeight(
	txn *database.Txn,
	voter common.Address,
	startsAt uint64,
) (uint64, error) {
	ts := startsAt
	if ts > 0 {
		ts--
	}
	w, err := l.config.WeightSource.WeightAt(txn, voter, ts)
	if errors.Is(err, common.ErrNoCheckpoint) {
		return l.config.WeightSource.CurrentWeight(txn, voter)
	}
	return w, err
}

func (l *Linear) Vote(
	txn *database.Txn,
	id uint64,
	voter common.Address,
	choice Choice,
) error {
	if choice > ChoiceAbstain {
		return fmt.Errorf("%w: %d", ErrInvalidChoice, choice)
	}
	p, err := l.load(txn, id)
	if err != nil {
		return err
	}
	if l.config.Clock.Now() > p.EndsAt {
		return ErrVotingClosed
	}
	voted, err := l.ns.Has(txn, voteKey(id, voter))
	if err != nil {
		return err
	}
	if voted {
		return ErrAlreadyVoted
	}
	w, err := l.snapshotWeight(txn, voter, p.StartsAt)
	if err != nil {
		return err
	}
	if w == 0 {
		return ErrNoVotes
	}
	switch choice {
	case ChoiceYes:
		p.Yes = common.SaturatingAdd(p.Yes, w)
	case ChoiceNo:
		p.No = common.SaturatingAdd(p.No, w)
	case ChoiceAbstain:
		p.Abstain = common.SaturatingAdd(p.Abstain, w)
	}
	if err := l.ns.Set(txn, voteKey(id, voter), []byte{byte(choice)}); err != nil {
		return err
	}
	if err := l.ns.SetCbor(txn, proposalKey(id), p); err != nil {
		return err
	}
	txn.OnCommit(func() {
		l.votes.WithLabelValues(choice.String()).Inc()
	})
	l.config.Logger.Info(
		"vote cast",
		"proposal_id", id,
		"voter", voter,
		"choice", choice.String(),
		"weight", w,
	)
	return nil
}

func (l *Linear) Tally(txn *database.Txn, id uint64) (LinearTally, error) {
	p, err := l.load(txn, id)
	if err != nil {
		return LinearTally{}, err
	}
	return LinearTally{
		StartsAt: p.StartsAt,
		EndsAt:   p.EndsAt,
		Yes:      p.Yes,
		No:       p.No,
		Abstain:  p.Abstain,
	}, nil
}

// passed applies the quorum and basis rules. It does not look at the clock.
func (l *Linear) passed(p *linearProposal) bool {
	if common.SaturatingAdd(p.Yes, p.Abstain) < l.config.Quorum {
		return false
	}
	// yes * D > (yes + no) * basis, in 128 bits
	lhsHi, lhsLo := bits.Mul64(p.Yes, BasisDenominator)
	sum, carry := bits.Add64(p.Yes, p.No, 0)
	rhsHi, rhsLo := bits.Mul64(sum, l.config.Basis)
	rhsHi += carry * l.config.Basis
	if lhsHi != rhsHi {
		return lhsHi > rhsHi
	}
	return lhsLo > rhsLo
}

func (l *Linear) IsPassed(txn *database.Txn, id uint64) (bool, error) {
	p, err := l.load(txn, id)
	if err != nil {
		return false, err
	}
	if l.config.Clock.Now() <= p.EndsAt {
		return false, nil
	}
	return l.passed(p), nil
}

func (l *Linear) IsFailed(txn *database.Txn, id uint64) (bool, error) {
	p, err := l.load(txn, id)
	if err != nil {
		return false, err
	}
	if l.config.Clock.Now() <= p.EndsAt {
		return false, nil
	}
	return !l.passed(p), nil
}

func (l *Linear) VotingEndsAt(txn *database.Txn, id uint64) (uint64, error) {
	p, err := l.load(txn, id)
	if err != nil {
		return 0, err
	}
	return p.EndsAt, nil
}
