package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"civic-polls/internal/domain/role"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - authz:{user_id} - 10m TTL, roles of the user
// - authz_gen:{user_id} - 24h TTL, bumped on every role change
// - stats:public - 30s TTL, public supporter counts

type CacheConfig struct {
	AuthzTTL time.Duration
	StatsTTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		AuthzTTL: 10 * time.Minute,
		StatsTTL: 30 * time.Second,
	}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	return &CacheStore{
		client: client,
		config: config,
	}
}

const authzGenTTL = 24 * time.Hour

func authzKey(userID uuid.UUID) string {
	return fmt.Sprintf("authz:%s", userID.String())
}

func authzGenKey(userID uuid.UUID) string {
	return fmt.Sprintf("authz_gen:%s", userID.String())
}

// setAuthzScript writes the context only while the generation still matches
// the one read before the role lookup.
var setAuthzScript = goredis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

var invalidateAuthzScript = goredis.NewScript(`
redis.call('INCR', KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
redis.call('DEL', KEYS[1])
return 1
`)

// GetAuthz returns the cached authorization context, or nil on a miss.
func (c *CacheStore) GetAuthz(ctx context.Context, userID uuid.UUID) (*role.Context, error) {
	var out role.Context
	hit, err := c.getJSON(ctx, authzKey(userID), &out)
	if err != nil || !hit {
		return nil, err
	}
	return &out, nil
}

// AuthzGeneration returns the current role generation of the user. Zero means
// no role change has been recorded within authzGenTTL.
func (c *CacheStore) AuthzGeneration(ctx context.Context, userID uuid.UUID) (int64, error) {
	gen, err := c.client.Get(ctx, authzGenKey(userID)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	return gen, err
}

// SetAuthz caches authz if the generation is still gen. It reports whether
// the value was stored; a concurrent invalidation makes it a no-op.
func (c *CacheStore) SetAuthz(ctx context.Context, authz role.Context, gen int64) (bool, error) {
	data, err := json.Marshal(authz)
	if err != nil {
		return false, err
	}
	keys := []string{authzKey(authz.UserID), authzGenKey(authz.UserID)}
	stored, err := setAuthzScript.Run(ctx, c.client, keys,
		strconv.FormatInt(gen, 10), data, c.config.AuthzTTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// InvalidateAuthz bumps the generation and drops the cached context.
func (c *CacheStore) InvalidateAuthz(ctx context.Context, userID uuid.UUID) error {
	keys := []string{authzKey(userID), authzGenKey(userID)}
	return invalidateAuthzScript.Run(ctx, c.client, keys, authzGenTTL.Milliseconds()).Err()
}

// GetStats loads a cached stats value into dst and reports whether it was present.
func (c *CacheStore) GetStats(ctx context.Context, name string, dst interface{}) (bool, error) {
	return c.getJSON(ctx, "stats:"+name, dst)
}

func (c *CacheStore) SetStats(ctx context.Context, name string, v interface{}) error {
	return c.setJSON(ctx, "stats:"+name, v, c.config.StatsTTL)
}

func (c *CacheStore) getJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *CacheStore) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}
