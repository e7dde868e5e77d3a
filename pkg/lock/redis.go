package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
)

// DefaultTTL bounds how long a crashed holder can block other sessions.
const DefaultTTL = time.Hour

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every process that talks to the same Redis.
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	token  string
}

var _ Locker = (*Redis)(nil)

// NewRedis creates a lock stored under key. A zero ttl uses DefaultTTL.
func NewRedis(client redis.UniversalClient, key string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

// TryLock implements Locker.
func (r *Redis) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return false, errors.WrapResource("acquire", "lock", r.key, err)
	}
	if ok {
		r.token = token
	}
	return ok, nil
}

// Unlock implements Locker.
func (r *Redis) Unlock(ctx context.Context) error {
	if r.token == "" {
		return nil
	}
	err := releaseScript.Run(ctx, r.client, []string{r.key}, r.token).Err()
	r.token = ""
	return errors.WrapResource("release", "lock", r.key, err)
}

// Name implements Locker.
func (r *Redis) Name() string { return "redis:" + r.key }
