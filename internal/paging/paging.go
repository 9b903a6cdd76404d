package paging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/freshcut/internal/shared"
	"golang.org/x/time/rate"
)

const (
	// DefaultConcurrency caps simultaneously in-flight page requests.
	DefaultConcurrency = 3
	// DefaultMaxRetries is the number of additional attempts per page after
	// the first one fails.
	DefaultMaxRetries = 5
	// DefaultRetryDelay is the fixed pause between attempts. No backoff
	// growth: recovery latency is bounded by retries * delay.
	DefaultRetryDelay = 10 * time.Second
)

// Page is a single page request against an offset-paginated collection.
type Page struct {
	Limit  int
	Offset int
}

// Result is one page's items plus the collection's declared total. The total
// must be stable across pages of the same fetch.
type Result[T any] struct {
	Items []T
	Total int
}

// FetchFunc retrieves a single page from the remote collection.
type FetchFunc[T any] func(ctx context.Context, page Page) (Result[T], error)

// ProgressFunc reports cumulative progress after each completed page:
// (itemsFetchedSoFar, total).
type ProgressFunc func(fetched, total int)

// Options configures a FetchAll run. Zero values fall back to the defaults
// above; PageSize is required. A negative MaxRetries disables retries
// entirely.
type Options struct {
	PageSize    int
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
	Limiter     *rate.Limiter // optional request pacing
	OnProgress  ProgressFunc  // optional, called after each page completes
}

func (o Options) withDefaults() (Options, error) {
	if o.PageSize <= 0 {
		return o, fmt.Errorf("%w: page size must be positive", shared.ErrInvalidArgument)
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	switch {
	case o.MaxRetries == 0:
		o.MaxRetries = DefaultMaxRetries
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o, nil
}

// FetchAll drains a paginated collection into a single ordered slice.
//
// The first page doubles as the probe that learns the total; the remaining
// pages run through a worker pool capped at Options.Concurrency. Completion
// order is unspecified but the returned slice is always assembled in
// ascending-offset order. A page that exhausts its retries fails the whole
// fetch and any already-fetched pages are discarded.
func FetchAll[T any](ctx context.Context, fetch FetchFunc[T], opts Options) ([]T, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	first, err := fetchWithRetry(ctx, fetch, Page{Limit: opts.PageSize}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: probe page: %v", shared.ErrFetchFailed, err)
	}

	total := first.Total
	if total == 0 {
		report(opts, 0, 0)
		return []T{}, nil
	}

	pageCount := (total + opts.PageSize - 1) / opts.PageSize
	pages := make([][]T, pageCount)
	pages[0] = first.Items

	var (
		mu      sync.Mutex
		fetched = len(first.Items)
		failed  error
	)
	report(opts, fetched, total)

	if pageCount == 1 {
		return pages[0], nil
	}

	jobs := make(chan int, pageCount-1)
	for i := 1; i < pageCount; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				mu.Lock()
				aborted := failed != nil
				mu.Unlock()
				if aborted {
					return
				}

				page := Page{Limit: opts.PageSize, Offset: i * opts.PageSize}
				res, err := fetchWithRetry(ctx, fetch, page, opts)

				mu.Lock()
				if err != nil {
					if failed == nil {
						failed = fmt.Errorf("%w: page at offset %d: %v", shared.ErrFetchFailed, page.Offset, err)
					}
					mu.Unlock()
					return
				}
				pages[i] = res.Items
				fetched += len(res.Items)
				// Reported under the lock so cumulative counts never
				// appear out of order to the observer.
				report(opts, fetched, total)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if failed != nil {
		return nil, failed
	}

	items := make([]T, 0, total)
	for _, page := range pages {
		items = append(items, page...)
	}
	return items, nil
}

// fetchWithRetry runs a single page request, retrying with a fixed delay
// until the attempt budget is spent. A page fetch runs to completion once
// issued: cancellation is only observed between attempts.
func fetchWithRetry[T any](ctx context.Context, fetch FetchFunc[T], page Page, opts Options) (Result[T], error) {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(opts.RetryDelay)
		}
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return Result[T]{}, err
			}
		}

		res, err := fetch(ctx, page)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return Result[T]{}, fmt.Errorf("exhausted %d attempts: %w", opts.MaxRetries+1, lastErr)
}

func report(opts Options, fetched, total int) {
	if opts.OnProgress != nil {
		opts.OnProgress(fetched, total)
	}
}
