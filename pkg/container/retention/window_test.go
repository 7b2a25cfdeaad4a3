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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocopc/retention/pkg/common/moerr"
)

func TestParseGranularity(t *testing.T) {
	for s, want := range map[string]Granularity{
		"day": Day, "D": Day, " week ": Week, "w": Week, "Month": Month, "m": Month,
	} {
		g, err := ParseGranularity(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, g, s)
	}
	_, err := ParseGranularity("year")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	assert.Equal(t, "unknown", Granularity(9).String())
}

func TestGranularityOffset(t *testing.T) {
	tests := []struct {
		g    Granularity
		t    time.Time
		want int64
	}{
		{Day, Epoch, 0},
		{Day, Epoch.Add(23 * time.Hour), 0},
		{Day, Epoch.Add(24 * time.Hour), 1},
		{Day, Epoch.Add(-time.Second), -1},
		{Day, time.Date(2008, 1, 1, 12, 0, 0, 0, time.UTC), 365},
		{Week, Epoch.AddDate(0, 0, 6), 0},
		{Week, Epoch.AddDate(0, 0, 7), 1},
		{Week, Epoch.AddDate(0, 0, -1), -1},
		{Month, time.Date(2007, 1, 31, 0, 0, 0, 0, time.UTC), 0},
		{Month, time.Date(2008, 3, 1, 0, 0, 0, 0, time.UTC), 14},
		{Month, time.Date(2006, 12, 31, 0, 0, 0, 0, time.UTC), -1},
		// offsets are taken in UTC
		{Day, time.Date(2007, 1, 2, 1, 0, 0, 0, time.FixedZone("UTC+8", 8*3600)), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.g.Offset(tt.t), "%s %s", tt.g, tt.t)
	}
}

func TestWindowValidateFor(t *testing.T) {
	for _, g := range []Granularity{Day, Week, Month} {
		first, second := g.Limits()
		w := Window{First: first, Second: second}
		require.NoError(t, w.ValidateFor(g))

		w.Second++
		require.True(t, moerr.IsMoErrCode(w.ValidateFor(g), moerr.ErrOutOfRange), g.String())
	}
	require.True(t, moerr.IsMoErrCode(Window{First: 0}.ValidateFor(Day), moerr.ErrInvalidArg))
	assert.Equal(t, 44, Window{First: 15, Second: 30}.EndLength())
}
