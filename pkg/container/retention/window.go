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
	"strings"
	"time"

	"github.com/cocopc/retention/pkg/common/moerr"
)

// Window is the pair of retention windows a row is evaluated against.
// The first window covers offsets [Start, Start+First-1], the end bitmap
// covers [Start+1, Start+First+Second-1].
type Window struct {
	Start  int64
	First  int32
	Second int32
}

// Validate checks the window fits the bitmaps.
func (w Window) Validate() error {
	if w.First < 1 || w.First > StartWindowBits {
		return moerr.NewInvalidArgNoCtx("first_length", w.First)
	}
	if w.Second < 0 {
		return moerr.NewInvalidArgNoCtx("second_length", w.Second)
	}
	if n := w.EndLength(); n > EndWindowBits {
		return moerr.NewOutOfRangeNoCtx("uint64", "end window length %d exceeds %d", n, EndWindowBits)
	}
	return nil
}

// ValidateFor checks the window against the limits of g as well.
func (w Window) ValidateFor(g Granularity) error {
	if err := w.Validate(); err != nil {
		return err
	}
	first, second := g.Limits()
	if w.First > first || w.Second > second {
		return moerr.NewOutOfRangeNoCtx(g.String(), "window %dx%d exceeds %dx%d", w.First, w.Second, first, second)
	}
	return nil
}

// EndLength is the number of bits the end bitmap uses.
func (w Window) EndLength() int {
	return int(w.First) + int(w.Second) - 1
}

// Granularity is the unit of the offsets fed to the accumulator.
type Granularity uint8

const (
	Day Granularity = iota
	Week
	Month
)

// Epoch is the origin of all offsets, both a Monday and the first day
// of a month.
var Epoch = time.Date(2007, time.January, 1, 0, 0, 0, 0, time.UTC)

func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "d":
		return Day, nil
	case "week", "w":
		return Week, nil
	case "month", "m":
		return Month, nil
	}
	return Day, moerr.NewInvalidInputNoCtx("unknown granularity %q", s)
}

func (g Granularity) String() string {
	switch g {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	default:
		return "unknown"
	}
}

// Limits returns the largest first and second window lengths supported
// for g: 15x30 days, 12x8 weeks, 6x3 months.
func (g Granularity) Limits() (first, second int32) {
	switch g {
	case Week:
		return 12, 8
	case Month:
		return 6, 3
	default:
		return 15, 30
	}
}

// Offset returns the number of whole units between Epoch and t, in UTC.
func (g Granularity) Offset(t time.Time) int64 {
	t = t.UTC()
	switch g {
	case Month:
		return int64(t.Year()-Epoch.Year())*12 + int64(t.Month()-Epoch.Month())
	case Week:
		return floorDiv(daysSinceEpoch(t), 7)
	default:
		return daysSinceEpoch(t)
	}
}

func daysSinceEpoch(t time.Time) int64 {
	const secondsPerDay = 24 * 60 * 60
	return floorDiv(t.Unix()-Epoch.Unix(), secondsPerDay)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
