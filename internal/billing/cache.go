package billing

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sells-group/careaudit-cli/pkg/stripe"
)

// PriceCache memoizes Stripe price lookups. Prices are immutable once
// created, so the TTL only bounds memory.
type PriceCache struct {
	client stripe.Client
	cache  *gocache.Cache
}

// NewPriceCache creates a cache in front of client.GetPrice.
func NewPriceCache(client stripe.Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PriceCache{client: client, cache: gocache.New(ttl, ttl*2)}
}

// Get returns the price with id, from cache when present.
func (c *PriceCache) Get(ctx context.Context, id string) (*stripe.Price, error) {
	if v, ok := c.cache.Get(id); ok {
		return v.(*stripe.Price), nil
	}
	p, err := c.client.GetPrice(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(id, p, gocache.DefaultExpiration)
	return p, nil
}
