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
	"math"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestBitTable(t *testing.T) {
	table := NewBitTable()

	convey.Convey("16 bit masks", t, func() {
		for i := 0; i < StartWindowBits; i++ {
			convey.So(table.Mask16(i), convey.ShouldEqual, uint16(1)<<i)
			convey.So(table.Saturated16(i), convey.ShouldEqual, uint16((uint32(1)<<(i+1))-1))
		}
		convey.So(table.Saturated16(0), convey.ShouldEqual, uint16(1))
		convey.So(table.Saturated16(6), convey.ShouldEqual, uint16(127))
		convey.So(table.Saturated16(15), convey.ShouldEqual, uint16(math.MaxUint16))
	})

	convey.Convey("64 bit masks", t, func() {
		for i := 0; i < EndWindowBits-1; i++ {
			convey.So(table.Mask64(i), convey.ShouldEqual, uint64(1)<<i)
			convey.So(table.Saturated64(i), convey.ShouldEqual, (uint64(1)<<(i+1))-1)
		}
		convey.So(table.Mask64(63), convey.ShouldEqual, uint64(1)<<63)
		convey.So(table.Saturated64(63), convey.ShouldEqual, uint64(math.MaxUint64))
		convey.So(table.Saturated64(20), convey.ShouldEqual, uint64(1<<21-1))
	})

	convey.Convey("out of range lookups panic", t, func() {
		convey.So(func() { table.Mask16(StartWindowBits) }, convey.ShouldPanic)
		convey.So(func() { table.Saturated64(-1) }, convey.ShouldPanic)
	})
}
