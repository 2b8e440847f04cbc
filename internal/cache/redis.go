package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/yourname/go-shortly/internal/store"
)

const keyPrefix = "mapping:"

// Redis caches mappings in a shared Redis instance so several replicas can
// share one hot set. Entries carry a TTL; expiry of the mapping itself is
// still checked by the resolver against the cached ExpiresAt.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context, code string) (store.Mapping, bool) {
	data, err := c.client.Get(ctx, keyPrefix+code).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("code", code).Msg("redis get")
		}
		return store.Mapping{}, false
	}
	var m store.Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("redis entry decode")
		return store.Mapping{}, false
	}
	return m, true
}

func (c *Redis) Set(ctx context.Context, m store.Mapping) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	ttl := c.ttl
	if m.ExpiresAt != nil {
		// No point caching past the mapping's own lifetime.
		if until := time.Until(*m.ExpiresAt); until > 0 && until < ttl {
			ttl = until
		}
	}
	if err := c.client.Set(ctx, keyPrefix+m.ShortCode, data, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("code", m.ShortCode).Msg("redis set")
	}
}

func (c *Redis) Del(ctx context.Context, code string) {
	if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("redis del")
	}
}

var _ Cache = (*Redis)(nil)
