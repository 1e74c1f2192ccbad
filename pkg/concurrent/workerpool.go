// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs jobs on a bounded number of goroutines.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}

// Run executes all jobs and returns the first error. The context passed to the
// remaining jobs is cancelled as soon as one job fails.
func (wp *WorkerPool) Run(ctx context.Context, jobs ...func(context.Context) error) error {
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for _, job := range jobs {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return job(groupCtx)
		})
	}

	return g.Wait()
}

// RunAll executes every job regardless of failures. The returned slice has one
// element per job, in job order, and is nil when no job failed.
func (wp *WorkerPool) RunAll(ctx context.Context, jobs ...func(context.Context) error) []error {
	results := make([]error, len(jobs))
	failed := false

	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return nil
			}
			results[i] = job(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range results {
		if err != nil {
			failed = true
			break
		}
	}
	if !failed {
		return nil
	}
	return results
}
