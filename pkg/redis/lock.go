package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive leases keyed by name.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// NewLocker panics if client is nil.
func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	if client == nil {
		panic("redis: locker requires a client")
	}
	return &Locker{client: client, prefix: prefix}
}

// Acquire takes the lease for ttl. It returns ErrLockNotAcquired when another
// owner holds it. The returned func releases the lease and is safe to call
// after the ttl has passed.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}
	return release, nil
}
