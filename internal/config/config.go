// Package config loads console settings.
//
// Sources, highest priority first:
//  1. explicit path (--config);
//  2. CONFIG_PATH;
//  3. ./console.yaml;
//  4. environment only.
//
// Environment variables always overlay the YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config interface {
	EnvConfig
	APIConfig
	StoreConfig
	GuardConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
	GetLogLevel() string
	GetFlashTTL() time.Duration
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetRefreshCoalescing() bool
}

type StoreConfig interface {
	GetTokenStore() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type GuardConfig interface {
	GetGuardWait() time.Duration
}

const defaultConfigFile = "console.yaml"

type mainConfig struct {
	EnvVars `yaml:"app"`
	API     `yaml:"api"`
	Store   `yaml:"store"`
	Guard   `yaml:"guard"`
}

var _ Config = (*mainConfig)(nil)

// New loads configuration from the environment only, panicking on error.
func New() Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load resolves the configuration file (if any) and overlays the environment.
func Load(path string) (Config, error) {
	var cfg mainConfig

	readFile := func(p string) (Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", p, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}
		return &cfg, nil
	}

	if path != "" {
		return readFile(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return readFile(defaultConfigFile)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	return &cfg, nil
}
