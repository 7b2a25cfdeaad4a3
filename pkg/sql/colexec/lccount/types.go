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

	"github.com/cocopc/retention/pkg/container/retention"
)

const (
	// degree of the group index btree
	btreeDegree = 32

	// flagLZ4 marks a compressed body in the exchange format.
	flagLZ4 byte = 1 << 0
)

// Result is the flushed value of one group.
type Result struct {
	Key   string
	Start int64
	End   int64
}

type group struct {
	key string
	acc retention.Accumulator
}

// groupItem orders the groups by key inside the btree.
type groupItem struct {
	key   string
	index int
}

func (g *groupItem) Less(than btree.Item) bool {
	return g.key < than.(*groupItem).key
}

// Exec is the group by executor of lc_count. Each group owns one
// accumulator; groups are addressed by the index GroupIndex returns.
// Exec is not safe for concurrent use.
type Exec struct {
	env    *retention.Env
	groups []*group
	index  *btree.BTree
}
