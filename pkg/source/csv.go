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

package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cocopc/retention/pkg/common/moerr"
)

const csvColumns = 3

// CSVSource reads key,unix_seconds,event records.
type CSVSource struct {
	r      *csv.Reader
	closer io.Closer
	header bool
	line   int
}

func OpenCSV(path string, header bool) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, moerr.ConvertGoError(moerr.Context(), err)
	}
	s := NewCSVSource(f, header)
	s.closer = f
	return s, nil
}

// NewCSVSource reads from r. When header is set the first record is skipped.
func NewCSVSource(r io.Reader, header bool) *CSVSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = csvColumns
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &CSVSource{r: cr, header: header}
}

func (s *CSVSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	for {
		record, err := s.r.Read()
		if err == io.EOF {
			return Event{}, io.EOF
		}
		s.line++
		if err != nil {
			return Event{}, moerr.NewInvalidInputNoCtx("csv line %d: %v", s.line, err)
		}
		if s.header {
			s.header = false
			continue
		}
		secs, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
		if err != nil {
			return Event{}, moerr.NewInvalidInputNoCtx("csv line %d: bad unix time %q", s.line, record[1])
		}
		return Event{
			Key:  record[0],
			Time: time.Unix(secs, 0).UTC(),
			Name: strings.TrimSpace(record[2]),
		}, nil
	}
}

func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
