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

// Package strategy provides the voting strategies a proposal can be decided by
package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database/types"
)

var (
	ErrUnknownProposal  = errors.New("strategy has no record of proposal")
	ErrProposalExists   = errors.New("proposal already initialized")
	ErrVotingClosed     = errors.New("voting is closed")
	ErrAlreadyVoted     = errors.New("voter already voted on this proposal")
	ErrNoVotes          = errors.New("voter has no voting weight")
	ErrUnauthorized     = errors.New("caller is not the strategy owner")
	ErrAlreadyResolved  = errors.New("proposal already resolved")
	ErrInvalidChoice    = errors.New("invalid vote choice")
	ErrInvalidParameter = errors.New("invalid strategy parameter")
)

type Choice uint8

const (
	ChoiceNo      Choice = 0
	ChoiceYes     Choice = 1
	ChoiceAbstain Choice = 2
)

func (c Choice) String() string {
	switch c {
	case ChoiceNo:
		return "no"
	case ChoiceYes:
		return "yes"
	case ChoiceAbstain:
		return "abstain"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(s) {
	case "no":
		return ChoiceNo, nil
	case "yes":
		return ChoiceYes, nil
	case "abstain":
		return ChoiceAbstain, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
}

func proposalKey(id uint64) []byte {
	return append([]byte("p/"), types.Uint64Key(id)...)
}

func voteKey(id uint64, voter common.Address) []byte {
	ret := append([]byte("v/"), types.Uint64Key(id)...)
	return append(ret, voter...)
}
