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
	"database/sql"
	"io"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/cocopc/retention/pkg/common/moerr"
	"github.com/cocopc/retention/pkg/logutil"
)

// Rows is the part of *sql.Rows SQLSource reads.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// SQLSource reads the key, unix seconds and event name columns of a query.
type SQLSource struct {
	rows Rows
	db   *sql.DB
}

// OpenSQL runs query against a MySQL protocol server, MatrixOne included.
func OpenSQL(ctx context.Context, dsn, query string) (*SQLSource, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, moerr.NewBadConfigNoCtx("dsn: %v", err)
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, moerr.ConvertGoError(ctx, err)
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		db.Close()
		return nil, moerr.ConvertGoError(ctx, err)
	}
	logutil.Info("sql source opened", zap.String("addr", cfg.Addr), zap.String("db", cfg.DBName))
	return &SQLSource{rows: rows, db: db}, nil
}

func NewSQLSource(rows Rows) *SQLSource {
	return &SQLSource{rows: rows}
}

func (s *SQLSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return Event{}, moerr.ConvertGoError(ctx, err)
		}
		return Event{}, io.EOF
	}
	var (
		e    Event
		secs int64
	)
	if err := s.rows.Scan(&e.Key, &secs, &e.Name); err != nil {
		return Event{}, moerr.NewInvalidInput(ctx, "scan event: %v", err)
	}
	e.Time = time.Unix(secs, 0).UTC()
	return e, nil
}

func (s *SQLSource) Close() error {
	err := s.rows.Close()
	if s.db != nil {
		if err2 := s.db.Close(); err == nil {
			err = err2
		}
	}
	return moerr.ConvertGoError(moerr.Context(), err)
}
