package pipeline

import (
	"context"
	"errors"

	"github.com/ironsheep/scan2pdf/internal/scan"
	"golang.org/x/sync/errgroup"
)

// pageError is a per-page failure from forEachPage.
type pageError struct {
	page int
	err  error
}

// forEachPage runs fn for every page on at most workers goroutines. The first
// failure stops new pages from starting and cancels the ones in flight. When
// several pages fail, the lowest index is reported. Cancellation of ctx is
// returned as the plain error with a nil pageError.
func forEachPage(ctx context.Context, pages []scan.Artifact, workers int, fn func(ctx context.Context, i int, page scan.Artifact) error) (*pageError, error) {
	if workers < 1 {
		workers = 1
	}
	errs := make([]error, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, page := range pages {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, i, page); err != nil {
				errs[i] = err
				return err
			}
			return nil
		})
	}
	waitErr := g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, err := range errs {
		// Pages canceled because a sibling failed are not failures.
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}
		return &pageError{page: pages[i].Index, err: err}, nil
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return nil, nil
}
