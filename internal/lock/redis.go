package lock

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"crypto-trading-bot/internal/logger"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another process is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis guards a key with SET NX PX so processes sharing one account never
// run a cycle at the same time. The TTL bounds how long a crashed holder can
// block the others.
type Redis struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
}

var _ Locker = (*Redis)(nil)

func NewRedis(client *goredis.Client, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl}
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (r *Redis) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", r.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// the cycle's context may already be cancelled
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, r.client, []string{r.key}, token).Err(); err != nil && err != goredis.Nil {
			logger.Warn(ctx, "Failed to release redis lock", "key", r.key, "error", err)
		}
	}, true, nil
}
