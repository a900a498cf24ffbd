package tokenstore

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/blood-bank-console/internal/config"
)

// Open builds the store selected by cfg. folder is the data folder used by the
// file backend. The returned close function releases backend resources.
func Open(ctx context.Context, cfg config.StoreConfig, folder string) (Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(cfg.GetTokenStore()) {
	case config.TokenStoreMemory:
		return NewMemory(), noop, nil

	case config.TokenStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, errors.Wrapf(err, "tokenstore.Open redis %s", cfg.GetRedisAddr())
		}
		return NewRedis(rdb, cfg.GetRedisPrefix()), rdb.Close, nil

	case config.TokenStoreFile, "":
		f, err := OpenFile(filepath.Join(folder, DefaultFileName))
		if err != nil {
			return nil, nil, err
		}
		return f, noop, nil
	}
	return nil, nil, errors.Errorf("tokenstore.Open unknown store kind %q", cfg.GetTokenStore())
}
