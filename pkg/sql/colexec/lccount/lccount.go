// Copyright 2022 Matrix Origin
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

package lccount

import (
	"github.com/google/btree"

	"github.com/cocopc/retention/pkg/common/moerr"
	"github.com/cocopc/retention/pkg/container/retention"
)

func NewExec(env *retention.Env) *Exec {
	return &Exec{
		env:   env,
		index: btree.New(btreeDegree),
	}
}

func (e *Exec) Env() *retention.Env {
	return e.env
}

// Len returns the number of groups.
func (e *Exec) Len() int {
	return len(e.groups)
}

// GroupIndex returns the index of the group of key, creating an empty one
// if needed.
func (e *Exec) GroupIndex(key string) int {
	if item := e.index.Get(&groupItem{key: key}); item != nil {
		return item.(*groupItem).index
	}
	idx := len(e.groups)
	e.groups = append(e.groups, &group{key: key})
	e.index.ReplaceOrInsert(&groupItem{key: key, index: idx})
	return idx
}

// Accumulator returns the state of group groupIndex.
func (e *Exec) Accumulator(groupIndex int) *retention.Accumulator {
	return &e.groups[groupIndex].acc
}

// Fill adds one row to group groupIndex.
func (e *Exec) Fill(groupIndex int, row retention.Row) error {
	if groupIndex < 0 || groupIndex >= len(e.groups) {
		return moerr.NewInvalidInputNoCtx("group index %d out of %d groups", groupIndex, len(e.groups))
	}
	return e.groups[groupIndex].acc.Fill(e.env, row)
}

// BatchFill adds rows[i] to the group of keys[i]. It stops at the first
// failing row; the rows before it stay applied.
func (e *Exec) BatchFill(keys []string, rows []retention.Row) error {
	if len(keys) != len(rows) {
		return moerr.NewInvalidInputNoCtx("batch of %d keys and %d rows", len(keys), len(rows))
	}
	for i := range rows {
		if err := e.groups[e.GroupIndex(keys[i])].acc.Fill(e.env, rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// Merge merges every group of other into the group of the same key.
// other is left unchanged.
func (e *Exec) Merge(other *Exec) {
	for _, g := range other.groups {
		e.groups[e.GroupIndex(g.key)].acc.Merge(&g.acc)
	}
}

// Ascend calls fn on each group in key order until fn returns false.
func (e *Exec) Ascend(fn func(key string, acc *retention.Accumulator) bool) {
	e.index.Ascend(func(item btree.Item) bool {
		g := e.groups[item.(*groupItem).index]
		return fn(g.key, &g.acc)
	})
}

// Flush decodes every group, in key order.
func (e *Exec) Flush() []Result {
	results := make([]Result, 0, len(e.groups))
	e.Ascend(func(key string, acc *retention.Accumulator) bool {
		start, end := acc.Decode()
		results = append(results, Result{Key: key, Start: start, End: end})
		return true
	})
	return results
}
