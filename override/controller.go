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

// Package override implements the emergency halt mechanism. A Controller
// accumulates token-weighted votes in bounded rounds and, once a threshold is
// crossed, activates a halt and raises its halt anchor. Veto and freeze are
// two independent controllers with the same behavior.
package override

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/blinklabs-io/vaultguard/clock"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/database/models"
	"github.com/blinklabs-io/vaultguard/database/types"
	"github.com/blinklabs-io/vaultguard/event"
	"github.com/blinklabs-io/vaultguard/weight"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	KindVeto   = "veto"
	KindFreeze = "freeze"
)

var (
	keyState    = []byte("state")
	keyRound    = []byte("round")
	keyVotedPfx = []byte("voted/")
)

func NamespaceTag(kind string) string {
	return "vaultguard/override/" + kind + "/v1"
}

type ControllerConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	EventBus     *event.EventBus
	Clock        clock.Clock
	// WeightSources holds every oracle the controller may be pointed at, by name
	WeightSources map[string]weight.Source
	Kind          string
	Owner         common.Address
	// Initial settings, used until the owner changes them
	WeightSource   string
	VotesThreshold uint64
	RoundPeriod    uint64
	HaltDuration   uint64
}

type Controller struct {
	config  ControllerConfig
	logger  *slog.Logger
	ns      database.Namespace
	metrics *controllerMetrics
}

type controllerState struct {
	_              struct{} `cbor:",toarray"`
	Active         bool
	LastHalt       HaltAnchor
	HaltDuration   uint64
	VotesThreshold uint64
	RoundPeriod    uint64
	WeightSource   string
}

type round struct {
	_         struct{} `cbor:",toarray"`
	Nonce     uint64
	CreatedAt uint64
	VoteCount uint64
}

// Round describes a voting round
type Round struct {
	Nonce     uint64
	CreatedAt uint64
	VoteCount uint64
	Expired   bool
}

// Status is a point-in-time snapshot of a controller
type Status struct {
	Kind              string
	WeightSource      string
	Owner             common.Address
	Round             Round
	LastHaltTimestamp uint64
	HaltDuration      uint64
	VotesThreshold    uint64
	RoundPeriod       uint64
	// Active is the effective flag, after any auto-lift
	Active     bool
	HasRound   bool
	AutoLifted bool
}

// VoteResult reports the effect of an accepted vote
type VoteResult struct {
	Nonce     uint64
	Weight    uint64
	VoteCount uint64
	NewRound  bool
	Activated bool
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("%w: kind is required", ErrInvalidConfig)
	}
	if cfg.VotesThreshold == 0 || cfg.RoundPeriod == 0 {
		return nil, fmt.Errorf(
			"%w: votes threshold and round period must be non-zero",
			ErrInvalidConfig,
		)
	}
	if _, ok := cfg.WeightSources[cfg.WeightSource]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWeightSource, cfg.WeightSource)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	return &Controller{
		config:  cfg,
		logger:  cfg.Logger.With("component", "override", "kind", cfg.Kind),
		ns:      database.NewNamespace(NamespaceTag(cfg.Kind)),
		metrics: newControllerMetrics(cfg.PromRegistry, cfg.Kind),
	}, nil
}

func (c *Controller) Kind() string {
	return c.config.Kind
}

func (c *Controller) loadState(txn *database.Txn) (*controllerState, error) {
	var st controllerState
	err := c.ns.GetCbor(txn, keyState, &st)
	if err == nil {
		return &st, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	// First use, start from the configured settings
	return &controllerState{
		HaltDuration:   c.config.HaltDuration,
		VotesThreshold: c.config.VotesThreshold,
		RoundPeriod:    c.config.RoundPeriod,
		WeightSource:   c.config.WeightSource,
	}, nil
}

func (c *Controller) saveState(txn *database.Txn, st *controllerState) error {
	return c.ns.SetCbor(txn, keyState, st)
}

func (c *Controller) loadRound(txn *database.Txn) (*round, bool, error) {
	var r round
	if err := c.ns.GetCbor(txn, keyRound, &r); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &round{}, false, nil
		}
		return nil, false, err
	}
	return &r, true, nil
}

func votedKey(nonce uint64, voter common.Address) []byte {
	ret := slices.Concat(keyVotedPfx, types.Uint64Key(nonce))
	return append(ret, voter...)
}

func (r *round) expired(now uint64, period uint64) bool {
	return now > common.SaturatingAdd(r.CreatedAt, period)
}

// effectiveActive applies the auto-lift rule. The anchor is never touched.
func (st *controllerState) effectiveActive(now uint64) bool {
	if !st.Active {
		return false
	}
	if st.HaltDuration > 0 &&
		now > common.SaturatingAdd(st.LastHalt.Get(), st.HaltDuration) {
		return false
	}
	return true
}

func (c *Controller) IsActive(txn *database.Txn) (bool, error) {
	st, err := c.loadState(txn)
	if err != nil {
		return false, err
	}
	return st.effectiveActive(c.config.Clock.Now()), nil
}

// LastHaltTimestamp is zero until the first activation
func (c *Controller) LastHaltTimestamp(txn *database.Txn) (uint64, error) {
	st, err := c.loadState(txn)
	if err != nil {
		return 0, err
	}
	return st.LastHalt.Get(), nil
}

func (c *Controller) voterWeight(
	txn *database.Txn,
	source weight.Source,
	voter common.Address,
	ts uint64,
) (uint64, error) {
	w, err := source.WeightAt(txn, voter, ts)
	if errors.Is(err, common.ErrNoCheckpoint) {
		return source.CurrentWeight(txn, voter)
	}
	return w, err
}

// CastVote adds the voter's weight to the live round, starting a fresh
// round if there is none or the last one expired. Crossing the threshold
// while inactive activates the halt.
func (c *Controller) CastVote(
	txn *database.Txn,
	voter common.Address,
) (*VoteResult, error) {
	now := c.config.Clock.Now()
	st, err := c.loadState(txn)
	if err != nil {
		return nil, err
	}
	r, exists, err := c.loadRound(txn)
	if err != nil {
		return nil, err
	}
	result := &VoteResult{}
	prevNonce := r.Nonce
	if !exists || r.expired(now, st.RoundPeriod) {
		createdAt := uint64(0)
		if now > 0 {
			createdAt = now - 1
		}
		r = &round{
			Nonce:     prevNonce + 1,
			CreatedAt: createdAt,
		}
		result.NewRound = true
	}
	voted, err := c.ns.Has(txn, votedKey(r.Nonce, voter))
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, ErrAlreadyVoted
	}
	source, ok := c.config.WeightSources[st.WeightSource]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWeightSource, st.WeightSource)
	}
	w, err := c.voterWeight(txn, source, voter, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("weight lookup: %w", err)
	}
	if w == 0 {
		return nil, ErrNoVotes
	}

	// Validation done, from here on the vote is applied
	if result.NewRound && exists {
		if err := c.clearVoted(txn, prevNonce); err != nil {
			return nil, err
		}
	}
	r.VoteCount = common.SaturatingAdd(r.VoteCount, w)
	if err := c.ns.Set(txn, votedKey(r.Nonce, voter), []byte{1}); err != nil {
		return nil, err
	}
	if err := c.ns.SetCbor(txn, keyRound, r); err != nil {
		return nil, err
	}
	if err := txn.DB().AddOverrideVote(&models.OverrideVote{
		Kind:    c.config.Kind,
		Nonce:   types.Uint64(r.Nonce),
		Voter:   string(voter),
		Weight:  types.Uint64(w),
		VotedAt: types.Uint64(now),
	}, txn); err != nil {
		return nil, fmt.Errorf("archive vote: %w", err)
	}
	result.Nonce = r.Nonce
	result.Weight = w
	result.VoteCount = r.VoteCount

	if r.VoteCount >= st.VotesThreshold && !st.effectiveActive(now) {
		if err := c.activate(txn, st, r, now); err != nil {
			return nil, err
		}
		result.Activated = true
	}

	c.logger.Info(
		"override vote cast",
		"voter", voter,
		"nonce", r.Nonce,
		"weight", w,
		"vote_count", r.VoteCount,
		"threshold", st.VotesThreshold,
	)
	txn.OnCommit(func() {
		c.metrics.votes.Inc()
		c.metrics.roundNonce.Set(float64(r.Nonce))
		c.publish(event.OverrideVoteEventType, event.OverrideVoteEvent{
			Kind:      c.config.Kind,
			Voter:     voter,
			Nonce:     r.Nonce,
			Weight:    w,
			VoteCount: r.VoteCount,
		})
	})
	return result, nil
}

func (c *Controller) activate(
	txn *database.Txn,
	st *controllerState,
	r *round,
	now uint64,
) error {
	st.Active = true
	st.LastHalt.Raise(now)
	if err := c.saveState(txn, st); err != nil {
		return err
	}
	if err := txn.DB().AddOverrideActivation(&models.OverrideActivation{
		Kind:        c.config.Kind,
		Nonce:       types.Uint64(r.Nonce),
		VoteCount:   types.Uint64(r.VoteCount),
		Threshold:   types.Uint64(st.VotesThreshold),
		ActivatedAt: types.Uint64(now),
	}, txn); err != nil {
		return fmt.Errorf("archive activation: %w", err)
	}
	haltTs := st.LastHalt.Get()
	c.logger.Warn(
		"override activated",
		"nonce", r.Nonce,
		"vote_count", r.VoteCount,
		"last_halt_timestamp", haltTs,
	)
	txn.OnCommit(func() {
		c.metrics.activations.Inc()
		c.metrics.active.Set(1)
		c.metrics.lastHalt.Set(float64(haltTs))
		c.publish(event.OverrideActivatedType, event.OverrideActivatedEvent{
			Kind:          c.config.Kind,
			Nonce:         r.Nonce,
			VoteCount:     r.VoteCount,
			HaltTimestamp: haltTs,
		})
	})
	return nil
}

// clearVoted drops the voter flags of a finished round
func (c *Controller) clearVoted(txn *database.Txn, nonce uint64) error {
	prefix := slices.Concat(keyVotedPfx, types.Uint64Key(nonce))
	var keys [][]byte
	if err := c.ns.Iterate(txn, prefix, func(key, _ []byte) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.ns.Delete(txn, key); err != nil {
			return err
		}
	}
	return nil
}

// Lift clears the active flag. The halt anchor is kept.
func (c *Controller) Lift(txn *database.Txn, caller common.Address) error {
	if caller != c.config.Owner {
		return ErrUnauthorized
	}
	st, err := c.loadState(txn)
	if err != nil {
		return err
	}
	if !st.Active {
		return ErrNotActive
	}
	st.Active = false
	if err := c.saveState(txn, st); err != nil {
		return err
	}
	c.logger.Warn("override lifted", "caller", caller)
	txn.OnCommit(func() {
		c.metrics.lifts.Inc()
		c.metrics.active.Set(0)
		c.publish(event.OverrideLiftedEventType, event.OverrideLiftedEvent{
			Kind:   c.config.Kind,
			Caller: caller,
		})
	})
	return nil
}

func (c *Controller) Status(txn *database.Txn) (*Status, error) {
	now := c.config.Clock.Now()
	st, err := c.loadState(txn)
	if err != nil {
		return nil, err
	}
	r, exists, err := c.loadRound(txn)
	if err != nil {
		return nil, err
	}
	active := st.effectiveActive(now)
	return &Status{
		Kind:              c.config.Kind,
		Owner:             c.config.Owner,
		WeightSource:      st.WeightSource,
		LastHaltTimestamp: st.LastHalt.Get(),
		HaltDuration:      st.HaltDuration,
		VotesThreshold:    st.VotesThreshold,
		RoundPeriod:       st.RoundPeriod,
		Active:            active,
		AutoLifted:        st.Active && !active,
		HasRound:          exists,
		Round: Round{
			Nonce:     r.Nonce,
			CreatedAt: r.CreatedAt,
			VoteCount: r.VoteCount,
			Expired:   exists && r.expired(now, st.RoundPeriod),
		},
	}, nil
}

func (c *Controller) updateConfig(
	txn *database.Txn,
	caller common.Address,
	field string,
	newValue string,
	apply func(st *controllerState) error,
) error {
	if caller != c.config.Owner {
		return ErrUnauthorized
	}
	st, err := c.loadState(txn)
	if err != nil {
		return err
	}
	if err := apply(st); err != nil {
		return err
	}
	if err := c.saveState(txn, st); err != nil {
		return err
	}
	c.logger.Info(
		"override configuration updated",
		"field", field,
		"value", newValue,
	)
	txn.OnCommit(func() {
		c.publish(event.OverrideConfigEventType, event.OverrideConfigEvent{
			Kind:     c.config.Kind,
			Field:    field,
			NewValue: newValue,
		})
	})
	return nil
}

func (c *Controller) UpdateVotesThreshold(
	txn *database.Txn,
	caller common.Address,
	threshold uint64,
) error {
	return c.updateConfig(
		txn,
		caller,
		"votes_threshold",
		strconv.FormatUint(threshold, 10),
		func(st *controllerState) error {
			if threshold == 0 {
				return fmt.Errorf("%w: votes threshold must be non-zero", ErrInvalidConfig)
			}
			st.VotesThreshold = threshold
			return nil
		},
	)
}

func (c *Controller) UpdateRoundPeriod(
	txn *database.Txn,
	caller common.Address,
	period uint64,
) error {
	return c.updateConfig(
		txn,
		caller,
		"round_period",
		strconv.FormatUint(period, 10),
		func(st *controllerState) error {
			if period == 0 {
				return fmt.Errorf("%w: round period must be non-zero", ErrInvalidConfig)
			}
			st.RoundPeriod = period
			return nil
		},
	)
}

// UpdateHaltDuration sets how long a halt lasts. Zero disables auto-lift.
// A halt that has already auto-lifted stays lifted, the new duration only
// applies to the current halt if it is still in effect.
func (c *Controller) UpdateHaltDuration(
	txn *database.Txn,
	caller common.Address,
	duration uint64,
) error {
	return c.updateConfig(
		txn,
		caller,
		"halt_duration",
		strconv.FormatUint(duration, 10),
		func(st *controllerState) error {
			if !st.effectiveActive(c.config.Clock.Now()) {
				st.Active = false
			}
			st.HaltDuration = duration
			return nil
		},
	)
}

func (c *Controller) UpdateWeightSource(
	txn *database.Txn,
	caller common.Address,
	name string,
) error {
	return c.updateConfig(
		txn,
		caller,
		"weight_source",
		name,
		func(st *controllerState) error {
			if _, ok := c.config.WeightSources[name]; !ok {
				return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrUnknownWeightSource, name)
			}
			st.WeightSource = name
			return nil
		},
	)
}

func (c *Controller) publish(evtType event.EventType, data any) {
	if c.config.EventBus == nil {
		return
	}
	c.config.EventBus.Publish(evtType, event.NewEvent(evtType, data))
}
