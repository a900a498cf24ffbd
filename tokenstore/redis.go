package tokenstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*Redis)(nil)

// Redis keeps the credentials as two string keys, <prefix>access_token and
// <prefix>refresh_token. Pair writes and clears run in one MULTI/EXEC.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedis creates a store over an existing client
func NewRedis(rdb redis.Cmdable, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) accessKey() string  { return r.prefix + AccessKey }
func (r *Redis) refreshKey() string { return r.prefix + RefreshKey }

func (r *Redis) Save(ctx context.Context, access string) error {
	var err error
	if access == "" {
		err = r.rdb.Del(ctx, r.accessKey()).Err()
	} else {
		err = r.rdb.Set(ctx, r.accessKey(), access, 0).Err()
	}
	return errors.Wrap(err, "tokenstore.Redis Save")
}

func (r *Redis) SaveAll(ctx context.Context, access, refresh string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.queue(ctx, pipe, r.accessKey(), access)
		r.queue(ctx, pipe, r.refreshKey(), refresh)
		return nil
	})
	return errors.Wrap(err, "tokenstore.Redis SaveAll")
}

func (r *Redis) GetAccess(ctx context.Context) (string, error) {
	return r.get(ctx, r.accessKey())
}

func (r *Redis) GetRefresh(ctx context.Context) (string, error) {
	return r.get(ctx, r.refreshKey())
}

func (r *Redis) Clear(ctx context.Context) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.accessKey(), r.refreshKey())
		return nil
	})
	return errors.Wrap(err, "tokenstore.Redis Clear")
}

func (r *Redis) queue(ctx context.Context, pipe redis.Pipeliner, key, value string) {
	if value == "" {
		pipe.Del(ctx, key)
		return
	}
	pipe.Set(ctx, key, value, 0)
}

func (r *Redis) get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "tokenstore.Redis Get %s", key)
	}
	return v, nil
}
