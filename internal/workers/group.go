package workers

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Run calls fn once for every item with at most limit calls in flight and
// waits for all of them. fn reports whether it produced a result; results
// come back in completion order, not input order. A failure inside fn is the
// caller's to record in R, so one item can never stop the others.
func Run[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) (R, bool)) []R {
	results := make([]R, 0, len(items))
	if len(items) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, item := range items {
		g.Go(func() error {
			r, ok := fn(ctx, item)
			if !ok {
				return nil
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}
