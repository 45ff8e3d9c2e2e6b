package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/checkpoint"
)

// Logging returns a wrapper that logs every backend operation with its
// duration and outcome. This is the diagnostic sink for status-change
// notifications: every status write passes through Save.
func Logging(logger *slog.Logger) Wrapper {
	return func(next checkpoint.Backend) checkpoint.Backend {
		return &loggingBackend{next: next, logger: logger}
	}
}

type loggingBackend struct {
	next   checkpoint.Backend
	logger *slog.Logger
}

func (l *loggingBackend) log(op, collection, identity string, start time.Time, err error) {
	attrs := []any{
		slog.String("op", op),
		slog.String("collection", collection),
		slog.Duration("elapsed", time.Since(start)),
	}
	if identity != "" {
		attrs = append(attrs, slog.String("identity", identity))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.logger.Error("backend operation failed", attrs...)
		return
	}
	l.logger.Debug("backend operation", attrs...)
}

func (l *loggingBackend) EnsureIndex(ctx context.Context, collection string) error {
	start := time.Now()
	err := l.next.EnsureIndex(ctx, collection)
	l.log("ensure_index", collection, "", start, err)
	return err
}

func (l *loggingBackend) Get(ctx context.Context, collection, identity string) (*checkpoint.Document, error) {
	start := time.Now()
	doc, err := l.next.Get(ctx, collection, identity)
	l.log("get", collection, identity, start, err)
	return doc, err
}

func (l *loggingBackend) Search(ctx context.Context, collection string, q checkpoint.Query) ([]*checkpoint.Document, error) {
	start := time.Now()
	docs, err := l.next.Search(ctx, collection, q)
	l.log("search", collection, "", start, err)
	return docs, err
}

func (l *loggingBackend) Save(ctx context.Context, collection, identity string, doc *checkpoint.Document) error {
	start := time.Now()
	err := l.next.Save(ctx, collection, identity, doc)
	if err == nil && doc.Status != "" {
		l.logger.Info("status recorded",
			slog.String("collection", collection),
			slog.String("identity", identity),
			slog.String("status", string(doc.Status)),
		)
	}
	l.log("save", collection, identity, start, err)
	return err
}

func (l *loggingBackend) Ping(ctx context.Context) error {
	start := time.Now()
	err := l.next.Ping(ctx)
	l.log("ping", "", "", start, err)
	return err
}

func (l *loggingBackend) Close() error {
	return l.next.Close()
}
