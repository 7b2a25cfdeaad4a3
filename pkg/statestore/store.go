// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package statestore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"

	"github.com/cocopc/retention/pkg/common/moerr"
	"github.com/cocopc/retention/pkg/container/retention"
	"github.com/cocopc/retention/pkg/logutil"
	"github.com/cocopc/retention/pkg/logutil/logutil2"
	"github.com/cocopc/retention/pkg/sql/colexec/lccount"
)

const separator = '/'

// Store keeps lc_count partial states across runs. A state written for a
// key is merged with the state already stored, so the stored value is the
// union of every run. Calls after Close fail with ErrInvalidState.
type Store struct {
	// serializes read-modify-write merges
	mu     sync.Mutex
	db     *pebble.DB
	closed atomic.Bool
}

type Option func(*pebble.Options)

// WithFS opens the store on fs, vfs.NewMem() for an in memory store.
func WithFS(fs vfs.FS) Option {
	return func(o *pebble.Options) {
		o.FS = fs
	}
}

func Open(dir string, opts ...Option) (*Store, error) {
	o := &pebble.Options{}
	for _, opt := range opts {
		opt(o)
	}
	db, err := pebble.Open(dir, o)
	if err != nil {
		return nil, moerr.ConvertGoError(moerr.Context(), err)
	}
	logutil.Info("state store opened", zap.String("dir", dir))
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return errClosed()
	}
	return moerr.ConvertGoError(moerr.Context(), s.db.Close())
}

func errClosed() error {
	return moerr.NewInvalidStateNoCtx("state store is closed")
}

// Get returns the stored state of key, empty when there is none.
func (s *Store) Get(ns, key string) (*retention.Accumulator, error) {
	if s.closed.Load() {
		return nil, errClosed()
	}
	acc := &retention.Accumulator{}
	if err := s.get(encodeKey(ns, key), acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Store) get(k []byte, acc *retention.Accumulator) error {
	v, c, err := s.db.Get(k)
	if err == pebble.ErrNotFound {
		return nil
	}
	if err != nil {
		return moerr.ConvertGoError(moerr.Context(), err)
	}
	defer c.Close()
	return acc.Unmarshal(v)
}

// Merge ORs acc into the stored state of key and returns the result.
func (s *Store) Merge(ns, key string, acc *retention.Accumulator) (*retention.Accumulator, error) {
	if s.closed.Load() {
		return nil, errClosed()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := encodeKey(ns, key)
	stored := &retention.Accumulator{}
	if err := s.get(k, stored); err != nil {
		return nil, err
	}
	stored.Merge(acc)
	if stored.IsEmpty() {
		return stored, nil
	}
	if err := s.db.Set(k, stored.Marshal(), pebble.Sync); err != nil {
		return nil, moerr.ConvertGoError(moerr.Context(), err)
	}
	return stored, nil
}

// MergeExec merges every group of exec with its stored state in one
// batch. exec is only updated to the union once the batch is committed,
// on error it is left as it was.
func (s *Store) MergeExec(ctx context.Context, ns string, exec *lccount.Exec) error {
	if s.closed.Load() {
		return errClosed()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	type pending struct {
		acc    *retention.Accumulator
		merged retention.Accumulator
	}
	var (
		err     error
		updates []pending
	)
	exec.Ascend(func(key string, acc *retention.Accumulator) bool {
		k := encodeKey(ns, key)
		stored := &retention.Accumulator{}
		if err = s.get(k, stored); err != nil {
			return false
		}
		if stored.IsEmpty() {
			if acc.IsEmpty() {
				return true
			}
		} else {
			u := pending{acc: acc}
			u.merged.Merge(acc)
			u.merged.Merge(stored)
			updates = append(updates, u)
			acc = &updates[len(updates)-1].merged
		}
		if err = b.Set(k, acc.Marshal(), nil); err != nil {
			err = moerr.ConvertGoError(moerr.Context(), err)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return moerr.ConvertGoError(moerr.Context(), err)
	}
	for i := range updates {
		*updates[i].acc = updates[i].merged
	}
	logutil2.Debug(ctx, "state store merged",
		zap.String("namespace", ns),
		zap.Int("groups", exec.Len()),
		zap.Int("updated", len(updates)))
	return nil
}

// Scan calls fn on every stored state of ns, in key order.
func (s *Store) Scan(ns string, fn func(key string, acc *retention.Accumulator) error) error {
	if s.closed.Load() {
		return errClosed()
	}
	prefix := encodeKey(ns, "")
	itr := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	defer itr.Close()

	for itr.First(); itr.Valid(); itr.Next() {
		acc := &retention.Accumulator{}
		if err := acc.Unmarshal(itr.Value()); err != nil {
			return err
		}
		if err := fn(string(itr.Key()[len(prefix):]), acc); err != nil {
			return err
		}
	}
	return moerr.ConvertGoError(moerr.Context(), itr.Error())
}

func encodeKey(ns, key string) []byte {
	k := make([]byte, 0, len(ns)+1+len(key))
	k = append(k, ns...)
	k = append(k, separator)
	return append(k, key...)
}

func upperBound(k []byte) []byte {
	u := make([]byte, len(k))
	copy(u, k)
	for i := len(u) - 1; i >= 0; i-- {
		if u[i]++; u[i] != 0 {
			return u[:i+1]
		}
	}
	return nil
}
