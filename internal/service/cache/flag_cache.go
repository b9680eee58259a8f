package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/repository"
)

const DefaultTTL = 5 * time.Minute

// Loader is the directory the cache mirrors.
type Loader interface {
	List(ctx context.Context) ([]*domain.FeatureFlag, error)
	GetByKey(ctx context.Context, key string) (*domain.FeatureFlag, error)
}

// FlagCache is an in-memory mirror of the flag directory with a single expiry for the
// whole map. Records it hands out must not be mutated; writers Put a fresh record.
type FlagCache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu        sync.RWMutex
	flags     map[string]*domain.FeatureFlag
	expiresAt time.Time
	// touched collects keys written while a full refresh is loading so the refresh
	// does not overwrite them with older data.
	touched map[string]struct{}
}

type Option func(*FlagCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *FlagCache) { c.now = now }
}

func New(loader Loader, ttl time.Duration, opts ...Option) *FlagCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &FlagCache{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
		flags:  make(map[string]*domain.FeatureFlag),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *FlagCache) expired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.now().Before(c.expiresAt)
}

// Get returns the flag for key, refreshing the whole map first when it has expired.
// A miss after refresh falls back to a single key lookup. found is false when the
// directory has no such flag.
func (c *FlagCache) Get(ctx context.Context, key string) (flag *domain.FeatureFlag, found bool, err error) {
	if c.expired() {
		if err := c.Refresh(ctx); err != nil {
			return nil, false, err
		}
	}

	c.mu.RLock()
	flag, found = c.flags[key]
	c.mu.RUnlock()
	if found {
		return flag, true, nil
	}

	v, err, _ := c.group.Do("key:"+key, func() (any, error) {
		flag, err := c.loader.GetByKey(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// A concurrent Put wins over the lookup.
		if current, ok := c.flags[key]; ok {
			flag = current
		} else {
			c.flags[key] = flag
		}
		c.mu.Unlock()
		return flag, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v.(*domain.FeatureFlag), true, nil
}

// All returns every cached flag ordered by key, refreshing first when expired.
func (c *FlagCache) All(ctx context.Context) ([]*domain.FeatureFlag, error) {
	if c.expired() {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.RLock()
	flags := make([]*domain.FeatureFlag, 0, len(c.flags))
	for _, flag := range c.flags {
		flags = append(flags, flag)
	}
	c.mu.RUnlock()

	sort.Slice(flags, func(i, j int) bool { return flags[i].Key < flags[j].Key })
	return flags, nil
}

// Refresh reloads every flag and restarts the TTL window. Concurrent callers share one load.
func (c *FlagCache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		c.mu.Lock()
		c.touched = make(map[string]struct{})
		c.mu.Unlock()

		flags, err := c.loader.List(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		touched := c.touched
		c.touched = nil
		if err != nil {
			return nil, err
		}

		next := make(map[string]*domain.FeatureFlag, len(flags))
		for _, flag := range flags {
			if current, ok := c.flags[flag.Key]; ok && current.UpdatedAt.After(flag.UpdatedAt) {
				flag = current
			}
			next[flag.Key] = flag
		}
		for key := range touched {
			if flag, ok := c.flags[key]; ok {
				next[key] = flag
			} else {
				delete(next, key)
			}
		}
		c.flags = next
		c.expiresAt = c.now().Add(c.ttl)
		return nil, nil
	})
	return err
}

// Put replaces the entry for flag.Key unless the cached record is newer, which
// happens when concurrent writers finish out of order. It does not extend the TTL window.
func (c *FlagCache) Put(flag *domain.FeatureFlag) {
	if flag == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.flags[flag.Key]; ok && current.UpdatedAt.After(flag.UpdatedAt) {
		return
	}
	c.flags[flag.Key] = flag
	c.touch(flag.Key)
}

// Invalidate drops key so the next Get reads it from the directory.
func (c *FlagCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flags, key)
	c.touch(key)
}

// Reset empties the cache and forces a full refresh on the next read.
func (c *FlagCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = make(map[string]*domain.FeatureFlag)
	c.expiresAt = time.Time{}
}

func (c *FlagCache) touch(key string) {
	if c.touched != nil {
		c.touched[key] = struct{}{}
	}
}

// Len is the number of cached flags.
func (c *FlagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.flags)
}
