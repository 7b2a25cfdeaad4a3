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
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/cocopc/retention/pkg/common/moerr"
)

// Accumulator is the lc_count state of one group.
//
// The zero value is empty. It becomes allocated on the first Fill or on
// a Merge with an allocated accumulator, and never goes back.
// An Accumulator must not be used by two goroutines at once.
type Accumulator struct {
	data []byte
}

func (acc *Accumulator) IsEmpty() bool {
	return acc.data == nil
}

func (acc *Accumulator) alloc() {
	if acc.data == nil {
		acc.data = make([]byte, AccumulatorSize)
	}
}

func (acc *Accumulator) startBits() uint16 {
	if acc.data == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(acc.data[startBitsOffset:])
}

func (acc *Accumulator) setStartBits(v uint16) {
	binary.LittleEndian.PutUint16(acc.data[startBitsOffset:], v)
}

func (acc *Accumulator) endBits() uint64 {
	if acc.data == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(acc.data[endBitsOffset:])
}

func (acc *Accumulator) setEndBits(v uint64) {
	binary.LittleEndian.PutUint64(acc.data[endBitsOffset:], v)
}

// Fill incorporates one row. Rows whose offset falls outside the window of
// their role change nothing but the allocation. A window that does not fit
// the bitmaps is rejected before the accumulator is touched.
func (acc *Accumulator) Fill(env *Env, row Row) error {
	if err := row.Window().Validate(); err != nil {
		return err
	}
	isStart := env.Classifier.Classify(RoleStart, row.StartEvents).Contains(row.What)
	isEnd := env.Classifier.Classify(RoleEnd, row.EndEvents).Contains(row.What)

	acc.alloc()

	if isStart {
		maxIdx := int64(row.FirstLength) - 1
		// the saturation check is on the whole window, a cleared low bit
		// under a set high bit still goes through the OR below.
		if cur := acc.startBits(); cur < env.Table.Saturated16(int(maxIdx)) {
			if idx := row.When - row.WindowStart; idx >= 0 && idx <= maxIdx {
				acc.setStartBits(cur | env.Table.Mask16(int(idx)))
			}
		}
	}

	if isEnd {
		maxIdx := int64(row.FirstLength) + int64(row.SecondLength) - 2
		if maxIdx < 0 {
			return nil
		}
		if cur := acc.endBits(); cur < env.Table.Saturated64(int(maxIdx)) {
			if idx := row.When - (row.WindowStart + 1); idx >= 0 && idx <= maxIdx {
				acc.setEndBits(cur | env.Table.Mask64(int(idx)))
			}
		}
	}
	return nil
}

// Merge ORs other into acc. other is never modified and never aliased.
func (acc *Accumulator) Merge(other *Accumulator) {
	if other == nil || other.IsEmpty() {
		return
	}
	if acc.IsEmpty() {
		acc.data = append([]byte(nil), other.data...)
		return
	}
	acc.setStartBits(acc.startBits() | other.startBits())
	acc.setEndBits(acc.endBits() | other.endBits())
}

// Decode returns the start and end bitmaps as integers, (0, 0) if empty.
// The end bitmap is reinterpreted as signed, so bit 63 reads negative.
func (acc *Accumulator) Decode() (int64, int64) {
	if acc.IsEmpty() {
		return 0, 0
	}
	return int64(acc.startBits()), int64(acc.endBits())
}

// StartOffsets returns the set positions of the start bitmap.
func (acc *Accumulator) StartOffsets() *roaring.Bitmap {
	return bitsOf(uint64(acc.startBits()))
}

// EndOffsets returns the set positions of the end bitmap.
func (acc *Accumulator) EndOffsets() *roaring.Bitmap {
	return bitsOf(acc.endBits())
}

func bitsOf(v uint64) *roaring.Bitmap {
	bm := roaring.New()
	for i := uint32(0); v != 0; i++ {
		if v&1 == 1 {
			bm.Add(i)
		}
		v >>= 1
	}
	return bm
}

// Marshal returns the wire form: nil when empty, AccumulatorSize bytes otherwise.
func (acc *Accumulator) Marshal() []byte {
	if acc.IsEmpty() {
		return nil
	}
	return append([]byte(nil), acc.data...)
}

func (acc *Accumulator) Unmarshal(data []byte) error {
	switch len(data) {
	case 0:
		acc.data = nil
	case AccumulatorSize:
		acc.data = append(acc.data[:0], data...)
	default:
		return moerr.NewSizeNotMatchNoCtx(fmt.Sprintf("accumulator of %d bytes", len(data)))
	}
	return nil
}

func (acc *Accumulator) String() string {
	if acc.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("start=%016b end=%064b", acc.startBits(), acc.endBits())
}
