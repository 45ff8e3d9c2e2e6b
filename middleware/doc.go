// Package middleware provides composable decorators for storage backends.
//
// A [Wrapper] is a function that wraps a [checkpoint.Backend] and returns
// another one. Wrappers are composed with [Chain] and applied left-to-right:
// the first wrapper in the slice is the outermost layer.
//
//	// logging → retry → backend
//	be := middleware.Chain(elasticBackend,
//	    middleware.Logging(logger),
//	    middleware.Retry(backoff.DefaultStrategy(), 5),
//	)
//
// # Built-in Wrappers
//
//   - [Logging] — logs each operation with collection, identity, duration, and outcome
//   - [Retry] — retries operations failing with ErrBackendUnavailable using a backoff strategy
//   - [Tracing] — records an OpenTelemetry span per operation
//   - [Metrics] — records per-operation duration and outcome counters
//   - [RateLimit] — throttles write operations through a token-bucket limiter
//
// # Writing Custom Wrappers
//
// Implement checkpoint.Backend with a struct that holds the next backend
// and delegates each method, adding behavior before or after:
//
//	func Readonly() middleware.Wrapper {
//	    return func(next checkpoint.Backend) checkpoint.Backend {
//	        return &readonlyBackend{next: next}
//	    }
//	}
package middleware
