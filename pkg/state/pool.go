/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package state

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/carverauto/fleetstate/pkg/logger"
)

// workerPool bounds the number of goroutines spent on persistence and
// notification side effects so the transport layer is never starved.
type workerPool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger logger.Logger
}

func newWorkerPool(size int, log logger.Logger) *workerPool {
	if size <= 0 {
		size = 1
	}

	return &workerPool{
		sem:    semaphore.NewWeighted(int64(size)),
		logger: log,
	}
}

// Submit schedules a task on the pool, blocking while the pool is
// saturated. A canceled context drops the task.
func (p *workerPool) Submit(ctx context.Context, task func(context.Context)) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.logger.Debug().Err(err).Msg("Dropping task, pool context canceled")
		return
	}

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)

		task(ctx)
	}()
}

// Drain blocks until every in-flight task has finished or the context
// expires, whichever comes first.
func (p *workerPool) Drain(ctx context.Context) {
	idle := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(idle)
	}()

	select {
	case <-idle:
	case <-ctx.Done():
		p.logger.Warn().Err(ctx.Err()).Msg("Draining cut short, tasks still in flight")
	}
}
