package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

const (
	cacheKeyPrefix  = "subscription:"
	DefaultCacheTTL = time.Minute
)

// CachedProvider keeps subscription snapshots in redis for a short time. Redis failures
// fall through to the wrapped provider.
type CachedProvider struct {
	next   Provider
	redis  *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

func NewCachedProvider(next Provider, redis *redis.Client, ttl time.Duration, logger *logger.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedProvider{
		next:   next,
		redis:  redis,
		ttl:    ttl,
		logger: logger,
	}
}

// cachedSnapshot distinguishes a cached "no subscription" from a cache miss.
type cachedSnapshot struct {
	Subscription *domain.Subscription `json:"subscription"`
}

func (p *CachedProvider) GetSubscription(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	key := cacheKeyPrefix + tenantID

	data, err := p.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var snapshot cachedSnapshot
		if err := json.Unmarshal(data, &snapshot); err == nil {
			return snapshot.Subscription, nil
		}
	case !errors.Is(err, redis.Nil):
		p.logger.Error("Redis error reading subscription cache", err)
	}

	sub, err := p.next.GetSubscription(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cachedSnapshot{Subscription: sub}); err == nil {
		if err := p.redis.Set(ctx, key, data, p.ttl).Err(); err != nil {
			p.logger.Error("Redis error writing subscription cache", err)
		}
	}
	return sub, nil
}
