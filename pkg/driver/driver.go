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

package driver

import (
	"context"
	"io"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/cocopc/retention/pkg/common/concurrent"
	"github.com/cocopc/retention/pkg/common/moerr"
	"github.com/cocopc/retention/pkg/config"
	"github.com/cocopc/retention/pkg/container/retention"
	"github.com/cocopc/retention/pkg/logutil"
	"github.com/cocopc/retention/pkg/logutil/logutil2"
	"github.com/cocopc/retention/pkg/source"
	"github.com/cocopc/retention/pkg/sql/colexec/lccount"
	"github.com/cocopc/retention/pkg/statestore"
)

// routes a group key to a shard
var hashKey = xxhash.Sum64String

// ShardStat describes the partial aggregation of one shard.
type ShardStat struct {
	Rows   int
	Groups int
	// EstimatedKeys is the hyperloglog estimate of the distinct keys.
	EstimatedKeys uint64
	// StateBytes is the size of the exchanged partial state.
	StateBytes int
}

type Report struct {
	Granularity retention.Granularity
	WindowStart time.Time
	Rows        int
	Results     []lccount.Result
	Summary     *retention.Summary
	Shards      []ShardStat
}

// Driver runs lc_count and lc_sum over a source the way a distributed
// engine would: rows are routed to shards by group key, each shard
// aggregates on its own, and the partial states are exchanged in their
// binary form and merged.
type Driver struct {
	cfg   *config.Config
	g     retention.Granularity
	from  time.Time
	start int64
	env   *retention.Env
	exec  *concurrent.ThreadPoolExecutor
	store *statestore.Store
}

type Option func(*Driver)

// WithStore merges the result with the states of earlier runs kept in store.
func WithStore(store *statestore.Store) Option {
	return func(d *Driver) {
		d.store = store
	}
}

// WithEnv replaces the default retention environment.
func WithEnv(env *retention.Env) Option {
	return func(d *Driver) {
		d.env = env
	}
}

// New returns a Driver for a validated cfg.
func New(cfg *config.Config, opts ...Option) (*Driver, error) {
	g, err := cfg.Granularity()
	if err != nil {
		return nil, err
	}
	startTime, err := cfg.StartTime()
	if err != nil {
		return nil, err
	}
	w := retention.Window{First: cfg.Retention.FirstLength, Second: cfg.Retention.SecondLength}
	if err := w.ValidateFor(g); err != nil {
		return nil, err
	}
	if cfg.Exec.Shards <= 0 {
		return nil, moerr.NewBadConfigNoCtx("exec.shards %d", cfg.Exec.Shards)
	}
	exec, err := concurrent.NewThreadPoolExecutor(cfg.Exec.Workers)
	if err != nil {
		return nil, err
	}
	d := &Driver{
		cfg:   cfg,
		g:     g,
		from:  startTime,
		start: g.Offset(startTime),
		exec:  exec,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.env == nil {
		d.env = retention.NewEnv(retention.WithClassifierWarnSize(cfg.Exec.ClassifierWarnSize))
	}
	return d, nil
}

func (d *Driver) Close() {
	d.exec.Release()
}

type shard struct {
	keys []string
	rows []retention.Row
}

// Run reads src to the end and returns the retention of every group key.
func (d *Driver) Run(ctx context.Context, src source.Source) (*Report, error) {
	ctx = logutil.WithFields(ctx,
		zap.String("granularity", d.g.String()),
		zap.String("start-date", d.cfg.Retention.StartDate))
	shards, n, err := d.route(ctx, src)
	if err != nil {
		return nil, err
	}

	partials := make([][]byte, len(shards))
	stats := make([]ShardStat, len(shards))
	err = d.exec.Execute(ctx, len(shards), func(ctx context.Context, _ int, start, end int) error {
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, stat, err := d.aggregate(shards[i])
			if err != nil {
				return err
			}
			partials[i], stats[i] = data, stat
			logutil2.Debug(ctx, "shard aggregated", zap.Int("shard", i), zap.Int("groups", stat.Groups))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	merged := lccount.NewExec(d.env)
	for _, data := range partials {
		partial, err := lccount.Unmarshal(d.env, data)
		if err != nil {
			return nil, err
		}
		merged.Merge(partial)
	}
	if d.store != nil {
		if err := d.store.MergeExec(ctx, d.cfg.Store.Namespace, merged); err != nil {
			return nil, err
		}
	}

	summary, err := retention.NewSummary(d.cfg.Retention.FirstLength, d.cfg.Retention.SecondLength)
	if err != nil {
		return nil, err
	}
	results := merged.Flush()
	for _, r := range results {
		summary.Add(r.Start, r.End)
	}

	logutil2.Info(ctx, "lc_count finished",
		zap.Int("rows", n),
		zap.Int("groups", len(results)),
		zap.Int("shards", len(shards)),
		zap.Int("cached-event-lists", d.env.Classifier.Len()))
	return &Report{
		Granularity: d.g,
		WindowStart: d.from,
		Rows:        n,
		Results:     results,
		Summary:     summary,
		Shards:      stats,
	}, nil
}

func (d *Driver) route(ctx context.Context, src source.Source) ([]shard, int, error) {
	shards := make([]shard, d.cfg.Exec.Shards)
	n := 0
	for {
		e, err := src.Next(ctx)
		if err == io.EOF {
			return shards, n, nil
		}
		if err != nil {
			return nil, 0, err
		}
		s := &shards[hashKey(e.Key)%uint64(len(shards))]
		s.keys = append(s.keys, e.Key)
		s.rows = append(s.rows, d.row(e))
		n++
	}
}

func (d *Driver) row(e source.Event) retention.Row {
	return retention.Row{
		When:         d.g.Offset(e.Time),
		WindowStart:  d.start,
		FirstLength:  d.cfg.Retention.FirstLength,
		SecondLength: d.cfg.Retention.SecondLength,
		What:         e.Name,
		StartEvents:  d.cfg.Retention.StartEvents,
		EndEvents:    d.cfg.Retention.EndEvents,
	}
}

// aggregate runs the partial aggregation of one shard and returns its
// exchanged form.
func (d *Driver) aggregate(s shard) ([]byte, ShardStat, error) {
	exec := lccount.NewExec(d.env)
	if err := exec.BatchFill(s.keys, s.rows); err != nil {
		return nil, ShardStat{}, err
	}
	sketch := hyperloglog.New()
	for _, key := range s.keys {
		sketch.Insert([]byte(key))
	}
	data, err := exec.Marshal(d.cfg.Exec.Compress)
	if err != nil {
		return nil, ShardStat{}, err
	}
	return data, ShardStat{
		Rows:          len(s.rows),
		Groups:        exec.Len(),
		EstimatedKeys: sketch.Estimate(),
		StateBytes:    len(data),
	}, nil
}
