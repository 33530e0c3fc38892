package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// acceptLockKey is the single mutex serializing scenario acceptance across
// planner nodes. Acceptance is the commit point between concurrent planning
// runs, so only one accept may be in flight at a time.
const acceptLockKey = "planner:lock:accept"

// AcceptLock is a Redis-backed mutex held for the duration of one scenario
// acceptance.
type AcceptLock struct {
	client *redis.Client
	token  string
}

// NewAcceptLock initializes a new Redis client for acceptance locking.
func NewAcceptLock(addr string) (*AcceptLock, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &AcceptLock{client: client}, nil
}

func (l *AcceptLock) Close() error {
	return l.client.Close()
}

// Acquire takes the accept lock, or reports false when another node holds
// it. token identifies the holder for release.
func (l *AcceptLock) Acquire(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, acceptLockKey, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire accept lock: %w", err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// releaseScript deletes the lock only if the caller still holds it, so a
// lock that expired and was re-acquired by another node is never clobbered.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Release drops the lock if token still holds it.
func (l *AcceptLock) Release(ctx context.Context, token string) error {
	return releaseScript.Run(ctx, l.client, []string{acceptLockKey}, token).Err()
}
