package kv

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Open returns the redis store when KV_REST_API_URL is configured, and the
// in-memory fallback otherwise. The fallback is non-durable and only
// suitable for local development and display strings; production deploys
// must configure redis.
func Open(ctx context.Context, logger *zap.Logger) (Store, error) {
	store, err := NewRedis(ctx, logger)
	if errors.Is(err, ErrUnconfigured) {
		logger.Warn("KV_REST_API_URL not set, using non-durable in-memory store")
		return NewMemory(logger), nil
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
