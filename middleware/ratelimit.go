package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/xraph/checkpoint"
)

// RateLimit returns a wrapper that throttles write operations (Save and
// EnsureIndex) through the provided limiter. Reads pass through
// untouched. Useful when a tight progress-recording loop would otherwise
// hammer the storage cluster.
func RateLimit(limiter *rate.Limiter) Wrapper {
	return func(next checkpoint.Backend) checkpoint.Backend {
		return &rateLimitBackend{next: next, limiter: limiter}
	}
}

type rateLimitBackend struct {
	next    checkpoint.Backend
	limiter *rate.Limiter
}

func (r *rateLimitBackend) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("checkpoint/middleware: rate limit wait: %w", err)
	}
	return nil
}

func (r *rateLimitBackend) EnsureIndex(ctx context.Context, collection string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.EnsureIndex(ctx, collection)
}

func (r *rateLimitBackend) Get(ctx context.Context, collection, identity string) (*checkpoint.Document, error) {
	return r.next.Get(ctx, collection, identity)
}

func (r *rateLimitBackend) Search(ctx context.Context, collection string, q checkpoint.Query) ([]*checkpoint.Document, error) {
	return r.next.Search(ctx, collection, q)
}

func (r *rateLimitBackend) Save(ctx context.Context, collection, identity string, doc *checkpoint.Document) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.Save(ctx, collection, identity, doc)
}

func (r *rateLimitBackend) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

func (r *rateLimitBackend) Close() error {
	return r.next.Close()
}
