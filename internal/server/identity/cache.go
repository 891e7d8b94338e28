package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/server/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingProvider memoises successful verifications keyed by a token hash.
// Entries never outlive the token they were derived from.
type CachingProvider struct {
	next  Provider
	cache *expirable.LRU[string, *Identity]
	now   func() time.Time
}

var _ Provider = (*CachingProvider)(nil)

func NewCachingProvider(next Provider, size int, ttl time.Duration) *CachingProvider {
	if size <= 0 {
		size = 1024
	}
	return &CachingProvider{
		next:  next,
		cache: expirable.NewLRU[string, *Identity](size, nil, ttl),
		now:   time.Now,
	}
}

func (c *CachingProvider) CurrentUser(ctx context.Context, token string) (*Identity, error) {
	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:])

	if id, ok := c.cache.Get(key); ok {
		if id.ExpiresAt.IsZero() || c.now().Before(id.ExpiresAt) {
			metrics.TokenCacheHits.Inc()
			cp := *id
			return &cp, nil
		}
		c.cache.Remove(key)
	}
	metrics.TokenCacheMisses.Inc()

	id, err := c.next.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	cp := *id
	c.cache.Add(key, &cp)
	return id, nil
}

// Len reports the number of cached identities.
func (c *CachingProvider) Len() int {
	return c.cache.Len()
}
