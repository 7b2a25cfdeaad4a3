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

package retention

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cocopc/retention/pkg/logutil"
)

// Role is the interpretation an event list is classified under.
type Role uint8

const (
	RoleStart Role = iota + 1
	RoleEnd
)

func (r Role) String() string {
	switch r {
	case RoleStart:
		return "start"
	case RoleEnd:
		return "end"
	default:
		return "unknown"
	}
}

// EventSet is an immutable set of event names.
type EventSet struct {
	names map[string]struct{}
}

func NewEventSet(names ...string) EventSet {
	s := EventSet{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		s.names[name] = struct{}{}
	}
	return s
}

func (s EventSet) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

func (s EventSet) Len() int {
	return len(s.names)
}

// Names returns the members in lexical order.
func (s EventSet) Names() []string {
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EventParser turns a raw event list into an EventSet.
type EventParser interface {
	Parse(list string) EventSet
}

// ListParser parses comma separated lists, "A, B,C". Names are trimmed
// and empty names dropped.
type ListParser struct{}

func (ListParser) Parse(list string) EventSet {
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return NewEventSet(names...)
}

type classifierKey struct {
	role Role
	list string
}

func (k classifierKey) flight() string {
	return k.role.String() + ":" + k.list
}

// Classifier caches the parsed EventSet of every (role, list) it has seen.
// A list is parsed at most once per role, even under concurrent first
// access. Entries are never evicted.
type Classifier struct {
	parser   EventParser
	warnSize int64

	sets   sync.Map // classifierKey -> EventSet
	flight singleflight.Group

	size   atomic.Int64
	warned atomic.Bool
}

// NewClassifier returns a Classifier using parser, or ListParser if nil.
// A warning is logged once when more than warnSize lists are cached;
// warnSize <= 0 disables it.
func NewClassifier(parser EventParser, warnSize int) *Classifier {
	if parser == nil {
		parser = ListParser{}
	}
	return &Classifier{
		parser:   parser,
		warnSize: int64(warnSize),
	}
}

func (c *Classifier) Classify(role Role, list string) EventSet {
	key := classifierKey{role: role, list: list}
	if v, ok := c.sets.Load(key); ok {
		return v.(EventSet)
	}
	v, _, _ := c.flight.Do(key.flight(), func() (any, error) {
		// a concurrent flight for the same key may have finished between
		// the Load above and this Do.
		if v, ok := c.sets.Load(key); ok {
			return v, nil
		}
		set := c.parser.Parse(list)
		c.sets.Store(key, set)
		c.onGrow(c.size.Add(1), key)
		return set, nil
	})
	return v.(EventSet)
}

func (c *Classifier) onGrow(size int64, key classifierKey) {
	if c.warnSize <= 0 || size <= c.warnSize {
		return
	}
	if c.warned.CompareAndSwap(false, true) {
		logutil.Warn("event list cache keeps growing",
			zap.Int64("size", size),
			zap.Int64("warn-size", c.warnSize),
			zap.String("role", key.role.String()),
			zap.String("list", key.list))
	}
}

// Len returns the number of cached (role, list) entries, which is also
// the number of times the parser ran.
func (c *Classifier) Len() int {
	return int(c.size.Load())
}
