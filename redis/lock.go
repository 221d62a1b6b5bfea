package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var (
	_ trawl.Locker = (*Locker)(nil)
	_ trawl.Lease  = (*lease)(nil)
)

// lockKey prefixes distributed lock keys.
const lockKey = "lock:"

// releaseScript deletes the lock only if the caller's token still holds
// it. Prevents a slow job from releasing a lock that expired and was
// re-acquired elsewhere.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// extendScript pushes the expiry forward only if the caller's token still
// holds the lock.
var extendScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// Locker implements trawl.Locker with set-if-absent-with-expiry.
type Locker struct {
	client *Client
}

// NewLocker creates a Locker on the client.
func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

// Acquire takes the named lock. Returns ECONFLICT immediately if it is
// held elsewhere.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (trawl.Lease, error) {
	token := uuid.New().String()

	ok, err := l.client.rdb.SetNX(ctx, lockKey+name, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, trawl.Errorf(trawl.ECONFLICT, "lock %q is held", name)
	}

	return &lease{client: l.client, key: lockKey + name, token: token}, nil
}

type lease struct {
	client *Client
	key    string
	token  string
}

// Extend pushes the lock expiry forward.
func (l *lease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client.rdb, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return trawl.Errorf(trawl.ECONFLICT, "lock lost before extend")
	}
	return nil
}

// Release frees the lock if this lease still holds it.
func (l *lease) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client.rdb, []string{l.key}, l.token).Int64()
	return err
}
