package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Locker guards a producer run so overlapping invocations do not both deliver.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// NoopLocker always grants the lock. Used when no Redis is configured.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context) (bool, error) { return true, nil }
func (NoopLocker) Release(context.Context) error         { return nil }

// releaseScript deletes the key only if it still holds our token,
// so a run that outlived its TTL cannot drop a lock taken by the next run.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// client is the subset of *redis.Client the lock needs
type client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker implements Locker with SET NX PX and a token-checked delete
type RedisLocker struct {
	client client
	key    string
	token  string
	ttl    time.Duration
}

func NewRedisLocker(addr string, password string, db int, key string, ttl time.Duration) *RedisLocker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Try to ping to ensure connection, but don't fail fatally: Acquire reports the error
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("Failed to connect to Redis")
	}

	return newRedisLocker(rdb, key, ttl)
}

func newRedisLocker(c client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: c,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to acquire lock %s", l.key)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return errors.Wrapf(err, "failed to release lock %s", l.key)
	}
	return nil
}
