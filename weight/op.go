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

package weight

import (
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/vaultguard/common"
)

const (
	OpMint     uint8 = 0
	OpBurn     uint8 = 1
	OpTransfer uint8 = 2
)

// Op is the payload the ledger accepts from the vault
type Op struct {
	_      struct{} `cbor:",toarray"`
	Op     uint8
	From   string
	To     string
	Amount uint64
}

func (o Op) Encode() ([]byte, error) {
	return cbor.Encode(&o)
}

func DecodeOp(payload []byte) (Op, error) {
	var op Op
	if _, err := cbor.Decode(payload, &op); err != nil {
		return op, fmt.Errorf("decode ledger op: %w", err)
	}
	return op, nil
}

func MintPayload(to common.Address, amount uint64) ([]byte, error) {
	return Op{Op: OpMint, To: string(to), Amount: amount}.Encode()
}

func BurnPayload(from common.Address, amount uint64) ([]byte, error) {
	return Op{Op: OpBurn, From: string(from), Amount: amount}.Encode()
}

func TransferPayload(from, to common.Address, amount uint64) ([]byte, error) {
	return Op{Op: OpTransfer, From: string(from), To: string(to), Amount: amount}.Encode()
}
