package coord

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const boundKey = "screenrelay:bound"

// clearScript deletes the binding only when it still holds the expected id.
var clearScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is the shared backend for multi-worker deployments.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(addr string) *Redis {
	return &Redis{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Bind(ctx context.Context, id string) (string, error) {
	prev, err := r.rdb.GetSet(ctx, boundKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return prev, nil
}

func (r *Redis) Bound(ctx context.Context) (string, error) {
	id, err := r.rdb.Get(ctx, boundKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Redis) Clear(ctx context.Context, id string) (bool, error) {
	n, err := clearScript.Run(ctx, r.rdb, []string{boundKey}, id).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
