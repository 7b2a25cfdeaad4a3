// Copyright 2021 Matrix Origin
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

package concurrent

import (
	"context"
	"errors"
	"runtime"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cocopc/retention/pkg/common/moerr"
)

// ThreadPoolExecutor splits [0, nitems) into one range per thread and runs
// them on an ants pool.
type ThreadPoolExecutor struct {
	nthreads int
	pool     *ants.Pool
}

func NewThreadPoolExecutor(nthreads int) (*ThreadPoolExecutor, error) {
	if nthreads <= 0 {
		nthreads = runtime.NumCPU()
	}
	pool, err := ants.NewPool(nthreads)
	if err != nil {
		return nil, moerr.ConvertGoError(context.Background(), err)
	}
	return &ThreadPoolExecutor{nthreads: nthreads, pool: pool}, nil
}

func (e *ThreadPoolExecutor) Threads() int {
	return e.nthreads
}

// Execute calls fn once per non-empty range and waits for all of them.
// The first error, or panic, cancels ctx for the others and is returned.
func (e *ThreadPoolExecutor) Execute(
	ctx context.Context,
	nitems int,
	fn func(ctx context.Context, thread_id int, start, end int) error) error {

	g, ctx := errgroup.WithContext(ctx)

	q := nitems / e.nthreads
	r := nitems % e.nthreads

	start := 0
	for i := 0; i < e.nthreads; i++ {
		size := q
		if i < r {
			size++
		}
		if size == 0 {
			break
		}

		end := start + size
		thread_id := i
		curStart := start
		curEnd := end
		g.Go(func() error {
			return e.run(ctx, func(ctx context.Context) error {
				return fn(ctx, thread_id, curStart, curEnd)
			})
		})
		start = end
	}

	return g.Wait()
}

// run submits f to the pool and waits for it. Panics come back as errors.
func (e *ThreadPoolExecutor) run(ctx context.Context, f func(ctx context.Context) error) error {
	done := make(chan error, 1)
	err := e.pool.Submit(func() {
		defer func() {
			if v := recover(); v != nil {
				done <- moerr.ConvertPanicError(ctx, v)
			}
		}()
		done <- f(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return moerr.NewInvalidState(ctx, "executor released")
	}
	if err != nil {
		return moerr.NewInternalError(ctx, "submit to pool: %v", err)
	}
	return <-done
}

// Release stops the pool. Execute fails with ErrInvalidState afterwards.
func (e *ThreadPoolExecutor) Release() {
	e.pool.Release()
}
