// Package cache provides a small report cache used for the read-heavy
// summary endpoints. Deployments without Redis fall back to the no-op
// implementation and every read hits Postgres.
package cache

import (
	"context"
	"time"
)

type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate drops every key under the given prefix.
	Invalidate(ctx context.Context, prefix string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
