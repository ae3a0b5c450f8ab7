package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheVersionKey = "catalog:version"
	cacheKeyPrefix  = "catalog:products"
)

// Cache keeps product listings in Redis under a versioned key. Bump moves
// every reader to a new version so stale lists simply expire.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache returns nil when client is nil; a nil *Cache always loads from the source.
func NewCache(client redis.Cmdable, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return ver, err
}

func listKey(filter ListFilter, ver int64) string {
	active := "any"
	if filter.Active != nil {
		active = strconv.FormatBool(*filter.Active)
	}
	return strings.Join([]string{cacheKeyPrefix, strconv.FormatInt(ver, 10), active, filter.Sort, strings.ToLower(filter.Search)}, ":")
}

// Products returns the cached listing for filter or populates it with load.
// Concurrent misses for the same key share one load.
func (c *Cache) Products(ctx context.Context, filter ListFilter, load func(context.Context) ([]Product, error)) ([]Product, error) {
	if c == nil {
		return load(ctx)
	}
	ver, err := c.version(ctx)
	if err != nil {
		return load(ctx)
	}
	key := listKey(filter, ver)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var products []Product
		if err := json.Unmarshal(raw, &products); err == nil {
			return products, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// The load is shared by every waiter on key.
		ctx := context.WithoutCancel(ctx)
		products, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(products); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Product), nil
}

// Bump invalidates every cached listing.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.client.Incr(ctx, cacheVersionKey).Err(); err != nil {
		return fmt.Errorf("catalog cache bump: %w", err)
	}
	return nil
}
