package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/checkpoint"
	"github.com/xraph/checkpoint/backoff"
)

// Retry returns a wrapper that retries operations failing with
// ErrBackendUnavailable, waiting between attempts according to the
// supplied strategy. Other errors (not found, illegal transition) are
// returned immediately. maxAttempts counts the first try; values below
// one are treated as one.
func Retry(strategy backoff.Strategy, maxAttempts int) Wrapper {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return func(next checkpoint.Backend) checkpoint.Backend {
		return &retryBackend{next: next, strategy: strategy, maxAttempts: maxAttempts}
	}
}

type retryBackend struct {
	next        checkpoint.Backend
	strategy    backoff.Strategy
	maxAttempts int
}

func (r *retryBackend) do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(r.strategy.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err = op(); err == nil {
			return nil
		}
		if !errors.Is(err, checkpoint.ErrBackendUnavailable) {
			return err
		}
	}
	return err
}

func (r *retryBackend) EnsureIndex(ctx context.Context, collection string) error {
	return r.do(ctx, func() error {
		return r.next.EnsureIndex(ctx, collection)
	})
}

func (r *retryBackend) Get(ctx context.Context, collection, identity string) (*checkpoint.Document, error) {
	var doc *checkpoint.Document
	err := r.do(ctx, func() error {
		var opErr error
		doc, opErr = r.next.Get(ctx, collection, identity)
		return opErr
	})
	return doc, err
}

func (r *retryBackend) Search(ctx context.Context, collection string, q checkpoint.Query) ([]*checkpoint.Document, error) {
	var docs []*checkpoint.Document
	err := r.do(ctx, func() error {
		var opErr error
		docs, opErr = r.next.Search(ctx, collection, q)
		return opErr
	})
	return docs, err
}

func (r *retryBackend) Save(ctx context.Context, collection, identity string, doc *checkpoint.Document) error {
	return r.do(ctx, func() error {
		return r.next.Save(ctx, collection, identity, doc)
	})
}

func (r *retryBackend) Ping(ctx context.Context) error {
	return r.do(ctx, func() error {
		return r.next.Ping(ctx)
	})
}

func (r *retryBackend) Close() error {
	return r.next.Close()
}
