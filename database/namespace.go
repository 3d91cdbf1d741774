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

package database

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/vaultguard/database/types"
)

// Namespace confines a component to its own slice of the blob keyspace.
// Every key is stored as tag + 0x00 + key.
type Namespace struct {
	tag    string
	prefix []byte
}

func NewNamespace(tag string) Namespace {
	prefix := make([]byte, 0, len(tag)+1)
	prefix = append(prefix, tag...)
	prefix = append(prefix, 0x00)
	return Namespace{tag: tag, prefix: prefix}
}

func (n Namespace) Tag() string {
	return n.tag
}

// Key returns the full blob key for a component-local key
func (n Namespace) Key(key []byte) []byte {
	ret := make([]byte, 0, len(n.prefix)+len(key))
	ret = append(ret, n.prefix...)
	return append(ret, key...)
}

func (n Namespace) Get(txn *Txn, key []byte) ([]byte, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	return txn.DB().Blob().Get(txn.Blob(), n.Key(key))
}

func (n Namespace) Set(txn *Txn, key []byte, val []byte) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	return txn.DB().Blob().Set(txn.Blob(), n.Key(key), val)
}

func (n Namespace) Delete(txn *Txn, key []byte) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	return txn.DB().Blob().Delete(txn.Blob(), n.Key(key))
}

// GetCbor decodes the value stored at key into dest
func (n Namespace) GetCbor(txn *Txn, key []byte, dest any) error {
	val, err := n.Get(txn, key)
	if err != nil {
		return err
	}
	if _, err := cbor.Decode(val, dest); err != nil {
		return fmt.Errorf("decode %s/%s: %w", n.tag, key, err)
	}
	return nil
}

func (n Namespace) SetCbor(txn *Txn, key []byte, v any) error {
	val, err := cbor.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", n.tag, key, err)
	}
	return n.Set(txn, key, val)
}

// Has reports whether key exists
func (n Namespace) Has(txn *Txn, key []byte) (bool, error) {
	_, err := n.Get(txn, key)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Iterate calls fn for every key under prefix in ascending order. Keys are
// passed without the namespace prefix.
func (n Namespace) Iterate(
	txn *Txn,
	prefix []byte,
	fn func(key []byte, val []byte) error,
) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	fullPrefix := n.Key(prefix)
	iter := txn.DB().Blob().NewIterator(
		txn.Blob(),
		types.BlobIteratorOptions{Prefix: fullPrefix},
	)
	defer iter.Close()
	for iter.Seek(fullPrefix); iter.ValidForPrefix(fullPrefix); iter.Next() {
		item := iter.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(bytes.TrimPrefix(item.Key(), n.prefix), val); err != nil {
			return err
		}
	}
	return iter.Err()
}

// SeekLast returns the greatest key under prefix that is less than or equal
// to prefix+upTo, along with its value. ErrNotFound means no such key.
func (n Namespace) SeekLast(
	txn *Txn,
	prefix []byte,
	upTo []byte,
) ([]byte, []byte, error) {
	if txn == nil {
		return nil, nil, types.ErrNilTxn
	}
	fullPrefix := n.Key(prefix)
	seekKey := append(append([]byte{}, fullPrefix...), upTo...)
	iter := txn.DB().Blob().NewIterator(
		txn.Blob(),
		types.BlobIteratorOptions{Prefix: fullPrefix, Reverse: true},
	)
	defer iter.Close()
	iter.Seek(seekKey)
	if err := iter.Err(); err != nil {
		return nil, nil, err
	}
	if !iter.ValidForPrefix(fullPrefix) {
		return nil, nil, types.ErrBlobKeyNotFound
	}
	item := iter.Item()
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	return bytes.TrimPrefix(item.Key(), n.prefix), val, nil
}
