package config

import "time"

const (
	TokenStoreFile   = "file"
	TokenStoreMemory = "memory"
	TokenStoreRedis  = "redis"
)

type Store struct {
	Kind          string `yaml:"kind" env:"TOKEN_STORE" env-default:"file"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	RedisPrefix   string `yaml:"redis_prefix" env:"REDIS_PREFIX" env-default:"bloodbank:console:"`
}

var _ StoreConfig = Store{}

func (s Store) GetTokenStore() string {
	return s.Kind
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisPrefix() string {
	return s.RedisPrefix
}

type Guard struct {
	Wait time.Duration `yaml:"wait" env:"GUARD_WAIT" env-default:"10s"`
}

var _ GuardConfig = Guard{}

// GetGuardWait bounds how long a guarded request waits for rehydration
func (g Guard) GetGuardWait() time.Duration {
	return g.Wait
}
