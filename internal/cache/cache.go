package cache

import (
	"context"
	"time"

	"gudangpos/backend/internal/domain"
)

type LowStockCache interface {
	Get(ctx context.Context, key string) (*domain.LowStockReport, bool, error)
	Set(ctx context.Context, key string, value *domain.LowStockReport, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopLowStockCache struct{}

func (NoopLowStockCache) Get(_ context.Context, _ string) (*domain.LowStockReport, bool, error) {
	return nil, false, nil
}

func (NoopLowStockCache) Set(_ context.Context, _ string, _ *domain.LowStockReport, _ time.Duration) error {
	return nil
}

func (NoopLowStockCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
