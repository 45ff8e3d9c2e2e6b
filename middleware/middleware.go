package middleware

import "github.com/xraph/checkpoint"

var (
	_ checkpoint.Backend = (*loggingBackend)(nil)
	_ checkpoint.Backend = (*retryBackend)(nil)
	_ checkpoint.Backend = (*tracingBackend)(nil)
	_ checkpoint.Backend = (*metricsBackend)(nil)
	_ checkpoint.Backend = (*rateLimitBackend)(nil)
)

// Wrapper decorates a Backend with cross-cutting behavior.
type Wrapper func(checkpoint.Backend) checkpoint.Backend

// Chain applies wrappers to b. The first wrapper in the list is the
// outermost decorator:
//
//	// logging → retry → backend
//	be := middleware.Chain(be, middleware.Logging(logger), middleware.Retry(strategy, 5))
func Chain(b checkpoint.Backend, wrappers ...Wrapper) checkpoint.Backend {
	for i := len(wrappers) - 1; i >= 0; i-- {
		b = wrappers[i](b)
	}
	return b
}
