package marketdata

import (
	"context"
	"errors"
	"time"

	"StratEq/internal/domain/models"
	"StratEq/internal/domain/repository"
	"StratEq/pkg/cache"
	"StratEq/pkg/logger"
)

const (
	featurePrefix = "features"
	lockPrefix    = "features:load"

	lockTTL      = 10 * time.Second
	lockWait     = 50 * time.Millisecond
	lockAttempts = 20
)

// Provider is the cache-through view over the feature store: per-date feature
// vectors are immutable once written, so a cached entry never goes stale.
// Concurrent loads of the same date are collapsed to one store read.
type Provider struct {
	store   repository.FeatureStore
	cache   cache.Service
	ttl     time.Duration
	logger  *logger.Logger
	metrics repository.Metrics
}

func NewProvider(store repository.FeatureStore, c cache.Service, ttl time.Duration, l *logger.Logger, m repository.Metrics) *Provider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Provider{store: store, cache: c, ttl: ttl, logger: l, metrics: m}
}

// Get returns the feature vector for a date, reading through the cache.
func (p *Provider) Get(ctx context.Context, date time.Time) (*models.MarketFeatures, error) {
	key := cache.DateKey(featurePrefix, date)

	var cached models.MarketFeatures
	err := p.cache.Get(ctx, key, &cached)
	if err == nil {
		p.metrics.RecordCacheHit(featurePrefix)
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		p.logger.Warn("feature cache read failed", logger.Error(err))
	}
	p.metrics.RecordCacheMiss(featurePrefix)

	lockKey := cache.DateKey(lockPrefix, date)
	acquired, err := p.cache.TryLock(ctx, lockKey, lockTTL)
	if err != nil {
		// Lock state is unknown; read the store directly without touching
		// the key, which may belong to another loader.
		p.logger.Warn("feature load lock failed", logger.Error(err))
		return p.load(ctx, date, key)
	}
	if acquired {
		defer func() {
			if err := p.cache.Unlock(context.Background(), lockKey); err != nil {
				p.logger.Warn("feature load unlock failed", logger.Error(err))
			}
		}()
		return p.load(ctx, date, key)
	}

	// Another caller is loading this date; wait for its cache write.
	for i := 0; i < lockAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockWait):
		}
		if err := p.cache.Get(ctx, key, &cached); err == nil {
			p.metrics.RecordCacheHit(featurePrefix)
			return &cached, nil
		}
	}
	// The loader stalled or its date had no data; fall back to the store.
	return p.load(ctx, date, key)
}

func (p *Provider) load(ctx context.Context, date time.Time, key string) (*models.MarketFeatures, error) {
	features, err := p.store.Features(ctx, date)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, features, p.ttl); err != nil {
		p.logger.Warn("feature cache write failed", logger.Error(err))
	}
	return features, nil
}
