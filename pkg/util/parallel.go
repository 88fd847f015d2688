package util

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Parallel runs fn over inputs with at most workerLimit in flight. The first error
// cancels the rest and is returned.
func Parallel[T any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, T) error) error {
	if len(inputs) == 0 {
		return nil
	}
	if workerLimit <= 0 {
		workerLimit = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit)
	for _, item := range inputs {
		g.Go(func() error {
			return fn(ctx, item)
		})
	}
	return g.Wait()
}
