package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLockNotHeld = errors.New("run lock not held by this owner")

// release deletes the lock only when it still belongs to the caller.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps the cross-process state of maintenance runs in Redis:
// an exclusive lock per collection ("<prefix>lock:<collection>") and the
// last report as JSON ("<prefix>report:<collection>").
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed run store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "creatorid-fix:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) lockKey(collection string) string   { return r.prefix + "lock:" + collection }
func (r *RedisStore) reportKey(collection string) string { return r.prefix + "report:" + collection }

// Acquire takes the lock for collection. It returns false when another owner holds it.
func (r *RedisStore) Acquire(ctx context.Context, collection, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		// never leave a lock behind without expiry
		ttl = time.Minute
	}
	return r.client.SetNX(ctx, r.lockKey(collection), owner, ttl).Result()
}

// Release frees the lock if owner still holds it.
func (r *RedisStore) Release(ctx context.Context, collection, owner string) error {
	n, err := release.Run(ctx, r.client, []string{r.lockKey(collection)}, owner).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Holder returns the current lock owner, or "" when the lock is free.
func (r *RedisStore) Holder(ctx context.Context, collection string) (string, error) {
	owner, err := r.client.Get(ctx, r.lockKey(collection)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return owner, nil
}

// SaveReport stores v as the last report for collection.
func (r *RedisStore) SaveReport(ctx context.Context, collection string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.reportKey(collection), b, 0).Err()
}

// LastReport decodes the last stored report into v. It returns false when none exists.
func (r *RedisStore) LastReport(ctx context.Context, collection string, v interface{}) (bool, error) {
	b, err := r.client.Get(ctx, r.reportKey(collection)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, err
	}
	return true, nil
}
