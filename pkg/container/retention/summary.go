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
	"github.com/cocopc/retention/pkg/common/moerr"
)

// Summary is the lc_sum aggregation over decoded lc_count pairs.
//
// It is a First x (Second+1) matrix. Column 0 of row i counts the groups
// with a start event at offset i, column j counts those of them that also
// had an end event j units later.
type Summary struct {
	first  int32
	second int32
	cells  []int64
}

func NewSummary(first, second int32) (*Summary, error) {
	w := Window{First: first, Second: second}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Summary{
		first:  first,
		second: second,
		cells:  make([]int64, int(first)*(int(second)+1)),
	}, nil
}

func (s *Summary) Shape() (first, second int32) {
	return s.first, s.second
}

func (s *Summary) width() int {
	return int(s.second) + 1
}

// Add counts one group given its decoded start and end bitmaps.
func (s *Summary) Add(startBits, endBits int64) {
	starts := bitsOf(uint64(startBits))
	ends := bitsOf(uint64(endBits))
	it := starts.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		if i >= int(s.first) {
			break
		}
		row := s.cells[i*s.width() : (i+1)*s.width()]
		row[0]++
		for j := 1; j <= int(s.second); j++ {
			if ends.Contains(uint32(i + j - 1)) {
				row[j]++
			}
		}
	}
}

// AddAccumulator is Add on the decoded value of acc.
func (s *Summary) AddAccumulator(acc *Accumulator) {
	if acc.IsEmpty() {
		return
	}
	s.Add(acc.Decode())
}

// Merge adds the counts of other, which must have the same shape.
func (s *Summary) Merge(other *Summary) error {
	if s.first != other.first || s.second != other.second {
		return moerr.NewInvalidInputNoCtx("merge summary %dx%d into %dx%d",
			other.first, other.second, s.first, s.second)
	}
	for i, v := range other.cells {
		s.cells[i] += v
	}
	return nil
}

// Row returns a copy of row i.
func (s *Summary) Row(i int) []int64 {
	return append([]int64(nil), s.cells[i*s.width():(i+1)*s.width()]...)
}

// Cells returns a copy of the matrix in row-major order.
func (s *Summary) Cells() []int64 {
	return append([]int64(nil), s.cells...)
}

// Rates returns cell[i][j] / cell[i][0], with row i all zero when nobody
// started at offset i.
func (s *Summary) Rates() [][]float64 {
	rates := make([][]float64, s.first)
	for i := range rates {
		row := s.cells[i*s.width() : (i+1)*s.width()]
		rates[i] = make([]float64, s.width())
		if row[0] == 0 {
			continue
		}
		for j, v := range row {
			rates[i][j] = float64(v) / float64(row[0])
		}
	}
	return rates
}
