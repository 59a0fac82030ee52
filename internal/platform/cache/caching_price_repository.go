// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/feature/marketsync/usecase"
)

const (
	defaultNamespace = "prices"
	scanCount        = 200
	openBound        = "-"
)

// CachingPriceRepository decorates a PriceRepository with Redis caching.
// It also implements usecase.CacheInvalidator so a sync run can drop the
// entries of the symbols it changed.
type CachingPriceRepository struct {
	inner     usecase.PriceRepository
	rdb       *redis.Client
	ttl       time.Duration
	loc       *time.Location
	namespace string
}

var (
	_ usecase.PriceRepository  = (*CachingPriceRepository)(nil)
	_ usecase.CacheInvalidator = (*CachingPriceRepository)(nil)
)

// NewCachingPriceRepository decorates a PriceRepository with Redis caching.
// If ttl is 0, entries live until the next 08:00 in loc, when the daily sync has run.
// If namespace is empty, it uses "prices".
func NewCachingPriceRepository(rdb *redis.Client, ttl time.Duration, loc *time.Location, inner usecase.PriceRepository, namespace string) *CachingPriceRepository {
	if loc == nil {
		loc = time.UTC
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &CachingPriceRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		loc:       loc,
		namespace: namespace,
	}
}

// ListPrices retrieves prices, checking cache first then falling back to the store.
func (c *CachingPriceRepository) ListPrices(ctx context.Context, symbol string, from, to time.Time) ([]entity.PricePoint, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.ListPrices(ctx, symbol, from, to)
	}

	key := c.cacheKey(symbol, from, to)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.PricePoint
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to the store
	out, err := c.inner.ListPrices(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.expiry()).Err()
	}

	return out, nil
}

// InvalidateSymbols deletes every cached range of the given symbols.
// All symbols are attempted; the errors are joined.
func (c *CachingPriceRepository) InvalidateSymbols(ctx context.Context, symbols []string) error {
	if c.rdb == nil || len(symbols) == 0 {
		return nil
	}
	var errs []error
	seen := map[string]struct{}{}
	for _, s := range symbols {
		prefix := c.cacheKeyPrefix(s)
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		if err := c.deleteByPattern(ctx, prefix+"*"); err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

func (c *CachingPriceRepository) expiry() time.Duration {
	if c.ttl > 0 {
		return c.ttl
	}
	return TimeUntilNext8AM(c.loc)
}

// cacheKey generates a cache key for a specific range query.
func (c *CachingPriceRepository) cacheKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("%s%s:%s", c.cacheKeyPrefix(symbol), bound(from), bound(to))
}

// cacheKeyPrefix generates a prefix for invalidating related cache entries.
func (c *CachingPriceRepository) cacheKeyPrefix(symbol string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(entity.NormalizeSymbol(symbol)))
}

func bound(d time.Time) string {
	if d.IsZero() {
		return openBound
	}
	return entity.FormatDate(d)
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingPriceRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	return s
}
