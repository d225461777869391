package insight

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"healthmap/core-go/internal/domain"
)

const keyPrefix = "healthmap:insight:"

// Store is the key/value backend of Cache.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore adapts a go-redis client to Store.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore parses a redis:// URL. The connection is established lazily.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{rdb: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Cache remembers insights per node and related context. Store failures are
// logged and never fail the request.
type Cache struct {
	next  Source
	store Store
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCache(next Source, store Store, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{next: next, store: store, ttl: ttl, log: log}
}

// CacheKey is stable regardless of the order related nodes are given in.
func CacheKey(node domain.Node, related []domain.Node) string {
	keys := make([]string, len(related))
	for i, r := range related {
		keys[i] = r.Key()
	}
	sort.Strings(keys)
	return keyPrefix + node.Key() + "|" + strings.Join(keys, ",")
}

func (c *Cache) NodeInsight(ctx context.Context, node domain.Node, related []domain.Node) (string, error) {
	key := CacheKey(node, related)

	if v, ok, err := c.store.Get(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("insight cache read failed")
	} else if ok {
		return v, nil
	}

	text, err := c.next.NodeInsight(ctx, node, related)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, key, text, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("insight cache write failed")
	}
	return text, nil
}
