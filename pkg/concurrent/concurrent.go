package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for every element of items with at most limit
// goroutines in flight (limit <= 0 means one per element). It returns the
// first error; the context passed to action is cancelled once any call fails.
func ForEach[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return action(gctx, item)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ForEachSerial is ForEach without goroutines; it stops at the first error.
func ForEachSerial[T any](ctx context.Context, items []T, action func(context.Context, T) error) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := action(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
