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
	// StartWindowBits is the width of the start bitmap, the upper bound of first_length.
	StartWindowBits = 16
	// EndWindowBits is the width of the end bitmap, the upper bound of
	// first_length + second_length - 1.
	EndWindowBits = 64
)

// BitTable holds the precomputed single-bit masks and saturated values
// for the start (16 bits) and end (64 bits) bitmaps.
//
// Saturated(k) is the value with bits 0..k all set, (1 << (k+1)) - 1.
// Indices outside [0, 15] / [0, 63] are a caller error and panic like any
// out of bounds array access.
type BitTable struct {
	mask16 [StartWindowBits]uint16
	full16 [StartWindowBits]uint16
	mask64 [EndWindowBits]uint64
	full64 [EndWindowBits]uint64
}

func NewBitTable() *BitTable {
	t := &BitTable{}
	var full16 uint16
	for i := 0; i < StartWindowBits; i++ {
		t.mask16[i] = uint16(1) << i
		full16 |= t.mask16[i]
		t.full16[i] = full16
	}
	var full64 uint64
	for i := 0; i < EndWindowBits; i++ {
		t.mask64[i] = uint64(1) << i
		full64 |= t.mask64[i]
		t.full64[i] = full64
	}
	return t
}

func (t *BitTable) Mask16(i int) uint16 {
	return t.mask16[i]
}

func (t *BitTable) Mask64(i int) uint64 {
	return t.mask64[i]
}

func (t *BitTable) Saturated16(k int) uint16 {
	return t.full16[k]
}

func (t *BitTable) Saturated64(k int) uint64 {
	return t.full64[k]
}
