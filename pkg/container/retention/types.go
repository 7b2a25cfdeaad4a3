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

const (
	startBitsOffset = 0
	endBitsOffset   = 2

	// AccumulatorSize is the size of an allocated accumulator on the wire:
	// a uint16 start bitmap followed by a uint64 end bitmap, little endian.
	AccumulatorSize = 10
)

// Row is one input row of lc_count.
type Row struct {
	// When is the offset of the event from the epoch, in days, weeks or months.
	When int64
	// WindowStart is the offset the query starts at.
	WindowStart int64
	// FirstLength is the length of the first window: 15 days, 12 weeks, 6 months.
	FirstLength int32
	// SecondLength is the length of the second window: 30 days, 8 weeks, 3 months.
	SecondLength int32
	// What is the event name.
	What string
	// StartEvents and EndEvents are comma separated event lists.
	StartEvents string
	EndEvents   string
}

func (r *Row) Window() Window {
	return Window{
		Start:  r.WindowStart,
		First:  r.FirstLength,
		Second: r.SecondLength,
	}
}

// Env is the state shared by every accumulator of one run. It is safe
// for concurrent use.
type Env struct {
	Table      *BitTable
	Classifier *Classifier
}

type Option func(*envOptions)

type envOptions struct {
	parser   EventParser
	warnSize int
}

// WithParser sets the parser used by the event list cache.
func WithParser(parser EventParser) Option {
	return func(o *envOptions) {
		o.parser = parser
	}
}

// WithClassifierWarnSize sets the cache size above which a warning is logged.
func WithClassifierWarnSize(n int) Option {
	return func(o *envOptions) {
		o.warnSize = n
	}
}

const defaultClassifierWarnSize = 1024

func NewEnv(opts ...Option) *Env {
	o := envOptions{warnSize: defaultClassifierWarnSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Env{
		Table:      NewBitTable(),
		Classifier: NewClassifier(o.parser, o.warnSize),
	}
}
