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

package event

import "github.com/blinklabs-io/vaultguard/common"

const (
	ProposalCreatedEventType  EventType = "governor.proposal_created"
	ProposalExecutedEventType EventType = "governor.proposal_executed"
	GovernorConfigEventType   EventType = "governor.config_updated"
	OverrideVoteEventType     EventType = "override.vote_cast"
	OverrideActivatedType     EventType = "override.activated"
	OverrideLiftedEventType   EventType = "override.lifted"
	OverrideConfigEventType   EventType = "override.config_updated"
	GuardRejectedEventType    EventType = "guard.rejected"
	VaultCallEventType        EventType = "vault.call"
)

// ProposalCreatedEvent carries the full transaction data, which is only
// committed to by hash in the registry
type ProposalCreatedEvent struct {
	Transactions    []common.Transaction
	Metadata        string
	Proposer        common.Address
	Strategy        string
	ProposalID      uint64
	TimelockPeriod  uint64
	ExecutionPeriod uint64
}

type ProposalExecutedEvent struct {
	Executor   common.Address
	ProposalID uint64
	FirstIndex int
	Count      int
	// Counter is the execution counter after this call
	Counter int
	Total   int
}

type GovernorConfigEvent struct {
	Field    string
	OldValue string
	NewValue string
}

type OverrideVoteEvent struct {
	Kind      string
	Voter     common.Address
	Nonce     uint64
	Weight    uint64
	VoteCount uint64
}

type OverrideActivatedEvent struct {
	Kind          string
	Nonce         uint64
	VoteCount     uint64
	HaltTimestamp uint64
}

type OverrideLiftedEvent struct {
	Kind   string
	Caller common.Address
}

type OverrideConfigEvent struct {
	Kind     string
	Field    string
	NewValue string
}

type GuardRejectedEvent struct {
	Reason     string
	Target     common.Address
	ProposalID uint64
	TxIndex    int
}

type VaultCallEvent struct {
	Target  common.Address
	Hash    common.Hash
	Value   uint64
	Kind    common.CallKind
	Success bool
}
