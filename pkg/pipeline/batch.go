package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/retrieval"
	"github.com/papercomputeco/memorag/pkg/worker"
)

// Result is the outcome of one batch record. Exactly one of Answer and Err
// is set.
type Result struct {
	Index  int
	Query  string
	Answer *Answer
	Err    error
}

// Progress is called after each record finishes.
type Progress func(done, total int)

// Batch answers queries and returns one result per query, in input order.
// Under FailFast the first failure stops the batch and is returned as a
// *errdefs.RecordError; under SkipAndReport failures are left on Result.Err.
func (p *Pipeline) Batch(ctx context.Context, queries []string, progress Progress) ([]Result, error) {
	results := make([]Result, len(queries))
	for i, q := range queries {
		results[i] = Result{Index: i, Query: q}
	}
	if len(queries) == 0 {
		return results, nil
	}

	if p.opts.Workers <= 1 {
		return results, p.batchSequential(ctx, results, progress)
	}
	return results, p.batchConcurrent(ctx, results, progress)
}

func (p *Pipeline) batchSequential(ctx context.Context, results []Result, progress Progress) error {
	for i := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.runRecord(ctx, &results[i]); err != nil {
			return err
		}
		if progress != nil {
			progress(i+1, len(results))
		}
	}
	return nil
}

func (p *Pipeline) batchConcurrent(ctx context.Context, results []Result, progress Progress) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		done     int
		firstErr *errdefs.RecordError
	)

	pool, err := worker.NewPool(ctx, &worker.Config[int]{
		NumWorkers: uint(p.opts.Workers),
		QueueSize:  uint(p.opts.Workers),
		Name:       "batch",
		Logger:     p.logger,
		Handler: func(ctx context.Context, i int) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := p.runRecord(ctx, &results[i])

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var rerr *errdefs.RecordError
				if errors.As(err, &rerr) && !errors.Is(rerr.Err, context.Canceled) &&
					(firstErr == nil || rerr.Index < firstErr.Index) {
					firstErr = rerr
				}
				cancel()
				return err
			}
			done++
			if progress != nil {
				progress(done, len(results))
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	for i := range results {
		if err := pool.Submit(ctx, i); err != nil {
			break
		}
	}
	pool.Close()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// runRecord answers one record. It returns an error only when the batch must
// stop.
func (p *Pipeline) runRecord(ctx context.Context, r *Result) error {
	ans, err := p.Query(ctx, r.Query)
	if err == nil {
		r.Answer = ans
		return nil
	}

	rerr := &errdefs.RecordError{Index: r.Index, Query: r.Query, Err: err}
	if p.opts.Policy == retrieval.SkipAndReport && ctx.Err() == nil {
		r.Err = rerr
		p.logger.Warn("query failed, continuing",
			"record", r.Index,
			"error", err,
		)
		return nil
	}
	r.Err = rerr
	return rerr
}
