// Package cache wraps the menu catalog with a Redis read-through cache.
// Cache failures are never fatal: every path degrades to the backing store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cafepoint/internal/model"
	"cafepoint/internal/storage"
)

// MenuCache implements storage.MenuStore over a backing store and Redis.
// Unit prices are cached per menu id; the popular-menu ranking is cached as
// one JSON blob with a short TTL since it is an aggregate over recent orders.
type MenuCache struct {
	inner      storage.MenuStore
	rdb        *redis.Client
	priceTTL   time.Duration
	popularTTL time.Duration
}

var _ storage.MenuStore = (*MenuCache)(nil)

func NewMenuCache(inner storage.MenuStore, rdb *redis.Client, priceTTL, popularTTL time.Duration) *MenuCache {
	return &MenuCache{inner: inner, rdb: rdb, priceTTL: priceTTL, popularTTL: popularTTL}
}

func priceKey(id string) string { return "menu:price:" + id }

func popularKey(limit int) string { return fmt.Sprintf("menu:popular:%d", limit) }

func (c *MenuCache) ListMenus(ctx context.Context) ([]model.Menu, error) {
	return c.inner.ListMenus(ctx)
}

func (c *MenuCache) GetMenu(ctx context.Context, id string) (*model.Menu, error) {
	return c.inner.GetMenu(ctx, id)
}

// ResolvePrices serves what it can from Redis and warms the cache with the
// rest from the backing store.
func (c *MenuCache) ResolvePrices(ctx context.Context, ids []string) (map[string]int64, error) {
	if len(ids) == 0 {
		return map[string]int64{}, nil
	}

	prices := make(map[string]int64, len(ids))
	missing := ids

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = priceKey(id)
	}
	if vals, err := c.rdb.MGet(ctx, keys...).Result(); err == nil {
		missing = missing[:0:0]
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			price, err := strconv.ParseInt(str, 10, 64)
			if err != nil {
				missing = append(missing, ids[i])
				continue
			}
			prices[ids[i]] = price
		}
	} else {
		slog.Debug("menu cache read failed, falling back to store", "error", err)
	}

	if len(missing) == 0 {
		return prices, nil
	}

	fetched, err := c.inner.ResolvePrices(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, price := range fetched {
		prices[id] = price
		if err := c.rdb.Set(ctx, priceKey(id), strconv.FormatInt(price, 10), c.priceTTL).Err(); err != nil {
			slog.Debug("menu cache write failed", "menu_id", id, "error", err)
		}
	}
	return prices, nil
}

func (c *MenuCache) PopularMenus(ctx context.Context, since time.Time, limit int) ([]model.PopularMenu, error) {
	if data, err := c.rdb.Get(ctx, popularKey(limit)).Bytes(); err == nil {
		var ranked []model.PopularMenu
		if err := json.Unmarshal(data, &ranked); err == nil {
			return ranked, nil
		}
	}

	ranked, err := c.inner.PopularMenus(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(ranked); err == nil {
		if err := c.rdb.Set(ctx, popularKey(limit), data, c.popularTTL).Err(); err != nil {
			slog.Debug("popular menu cache write failed", "error", err)
		}
	}
	return ranked, nil
}
