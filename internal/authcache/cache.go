package authcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/alexchen1337/SpeakWell/internal/client"
	"github.com/alexchen1337/SpeakWell/internal/domain"
)

// Cache is a single-entry, time-bounded cache of the authenticated user.
// Concurrent callers with an expired entry share one in-flight fetch via a
// single-flight group rather than issuing duplicates.
type Cache struct {
	client client.StatusClient
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group

	mu        sync.Mutex
	user      *domain.User
	expiresAt time.Time
}

// New creates a Cache that keeps the current user for ttl after each fetch.
func New(c client.StatusClient, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		client: c,
		ttl:    ttl,
		logger: logger,
	}
}

// CurrentUser returns the cached user when fresh, otherwise performs (or
// joins) a single fetch and caches the result.
func (c *Cache) CurrentUser(ctx context.Context) (*domain.User, error) {
	c.mu.Lock()
	if c.user != nil && time.Now().Before(c.expiresAt) {
		user := *c.user
		c.mu.Unlock()
		return &user, nil
	}
	c.mu.Unlock()

	v, err, shared := c.group.Do("current_user", func() (interface{}, error) {
		user, err := c.client.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.user = user
		c.expiresAt = time.Now().Add(c.ttl)
		c.mu.Unlock()
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("current-user fetch deduplicated by single-flight")
	}

	user := *v.(*domain.User)
	return &user, nil
}

// Invalidate drops the cached entry so the next call fetches fresh.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = nil
	c.expiresAt = time.Time{}
}
