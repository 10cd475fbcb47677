package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Progress is reported after every finished item. Done grows by exactly one
// per report and ends at Total.
type Progress struct {
	Done   int
	Failed int
	Total  int
	// Item is the index that just finished.
	Item int
	Err  error
}

// ItemError records the failure of one item.
type ItemError struct {
	Item int
	Err  error
}

func (e ItemError) Error() string { return fmt.Sprintf("item %d: %v", e.Item, e.Err) }
func (e ItemError) Unwrap() error { return e.Err }

// Result is the all-settled outcome of a run.
type Result struct {
	Total     int
	Succeeded int
	Errors    []ItemError
}

// Err joins the per-item errors, or returns nil when every item succeeded.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Run calls fn for items 0..n-1 with at most limit calls in flight. Every item
// is settled: a failing item does not stop the others. Items not started
// before ctx is canceled fail with ctx.Err(). onProgress is called
// sequentially and may be nil.
func Run(ctx context.Context, n, limit int, fn func(ctx context.Context, item int) error, onProgress func(Progress)) Result {
	res := Result{Total: n}
	if n <= 0 {
		return res
	}
	if limit <= 0 {
		limit = 1
	}

	var (
		mu   sync.Mutex
		done int
	)
	settle := func(item int, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			res.Errors = append(res.Errors, ItemError{Item: item, Err: err})
		} else {
			res.Succeeded++
		}
		if onProgress != nil {
			onProgress(Progress{Done: done, Failed: len(res.Errors), Total: n, Item: item, Err: err})
		}
	}

	// The group never receives an error so one failure cannot cancel siblings.
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		item := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				settle(item, err)
				return nil
			}
			settle(item, safeCall(ctx, item, fn))
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func safeCall(ctx context.Context, item int, fn func(context.Context, int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, item)
}
