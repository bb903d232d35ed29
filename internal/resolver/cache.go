package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/beego/beego/v2/core/logs"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const redisPrefix = "crud:resolver:"

// readCache guarda representaciones remotas ya obtenidas: primero en memoria del
// proceso y, si hay redis, en un nivel compartido entre réplicas.
type readCache struct {
	ttl   time.Duration
	local *gocache.Cache
	redis redis.UniversalClient
}

func newReadCache(ttl time.Duration, rdb redis.UniversalClient) *readCache {
	if ttl <= 0 {
		return nil
	}
	return &readCache{
		ttl:   ttl,
		local: gocache.New(ttl, 2*ttl),
		redis: rdb,
	}
}

func cacheKey(ref Ref, id int64) string {
	return fmt.Sprintf("%s/%d", ref, id)
}

func (c *readCache) get(ctx context.Context, ref Ref, id int64) (json.RawMessage, bool) {
	if c == nil {
		return nil, false
	}
	key := cacheKey(ref, id)
	if v, ok := c.local.Get(key); ok {
		return v.(json.RawMessage), true
	}
	if c.redis == nil {
		return nil, false
	}
	b, err := c.redis.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logs.Warn("resolver cache redis get key=%s err=%v", key, err)
		}
		return nil, false
	}
	raw := json.RawMessage(b)
	c.local.Set(key, raw, gocache.DefaultExpiration)
	return raw, true
}

func (c *readCache) set(ctx context.Context, ref Ref, id int64, raw json.RawMessage) {
	if c == nil || len(raw) == 0 {
		return
	}
	key := cacheKey(ref, id)
	c.local.Set(key, raw, gocache.DefaultExpiration)
	if c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, redisPrefix+key, []byte(raw), c.ttl).Err(); err != nil {
		logs.Warn("resolver cache redis set key=%s err=%v", key, err)
	}
}

func (c *readCache) forget(ctx context.Context, ref Ref, id int64) {
	if c == nil {
		return
	}
	key := cacheKey(ref, id)
	c.local.Delete(key)
	if c.redis != nil {
		if err := c.redis.Del(ctx, redisPrefix+key).Err(); err != nil {
			logs.Warn("resolver cache redis del key=%s err=%v", key, err)
		}
	}
}
