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
	"time"

	"github.com/cocopc/retention/pkg/common/moerr"
	"github.com/cocopc/retention/pkg/config"
)

// Event is one raw event: who did what, when.
type Event struct {
	Key  string
	Time time.Time
	Name string
}

// Source yields events until it returns io.EOF.
type Source interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Open returns the source cfg describes.
func Open(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	switch cfg.Type {
	case config.SourceCSV:
		return OpenCSV(cfg.Path, cfg.Header)
	case config.SourceMySQL:
		return OpenSQL(ctx, cfg.DSN, cfg.Query)
	default:
		return nil, moerr.NewNotSupportedNoCtx("source type %s", cfg.Type)
	}
}
