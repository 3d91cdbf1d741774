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

package common

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"golang.org/x/crypto/blake2b"
)

const HashSize = 32

// Address identifies an account: a voter, a proposer, an owner or a call target
type Address string

func (a Address) String() string {
	return string(a)
}

// CallKind selects how the vault dispatches a transaction to its target
type CallKind uint8

const (
	CallKindCall         CallKind = 0
	CallKindDelegateCall CallKind = 1
)

func (k CallKind) String() string {
	switch k {
	case CallKindCall:
		return "call"
	case CallKindDelegateCall:
		return "delegatecall"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseCallKind maps the textual form used in batch files back to a CallKind
func ParseCallKind(s string) (CallKind, error) {
	switch s {
	case "", "call":
		return CallKindCall, nil
	case "delegatecall":
		return CallKindDelegateCall, nil
	default:
		return 0, fmt.Errorf("unknown call kind: %q", s)
	}
}

type Hash [HashSize]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// NewHash copies a raw commitment, rejecting anything that is not exactly HashSize bytes
func NewHash(data []byte) (Hash, error) {
	var ret Hash
	if len(data) != HashSize {
		return ret, fmt.Errorf(
			"invalid hash length: expected %d bytes, got %d",
			HashSize,
			len(data),
		)
	}
	copy(ret[:], data)
	return ret, nil
}

// Transaction is a single privileged operation the vault may be asked to perform
type Transaction struct {
	Target  Address
	Value   uint64
	Payload []byte
	Kind    CallKind
}

var ErrEmptyTarget = errors.New("transaction target is empty")

// Encode returns the canonical CBOR encoding of the transaction. Commitments
// are taken over this encoding, so field order here is part of the storage format.
func (t Transaction) Encode() ([]byte, error) {
	payload := t.Payload
	if payload == nil {
		payload = []byte{}
	}
	return cbor.Encode(
		[]any{
			string(t.Target),
			t.Value,
			payload,
			uint8(t.Kind),
		},
	)
}

// Hash returns the commitment stored for this transaction at submission time
func (t Transaction) Hash() (Hash, error) {
	if t.Target == "" {
		return Hash{}, ErrEmptyTarget
	}
	encoded, err := t.Encode()
	if err != nil {
		return Hash{}, fmt.Errorf("encode transaction: %w", err)
	}
	return blake2b.Sum256(encoded), nil
}
