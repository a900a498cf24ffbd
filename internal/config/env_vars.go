package config

import (
	"fmt"
	"strings"
	"time"
)

type EnvVars struct {
	Port       string        `yaml:"port" env:"PORT" env-default:"8080"`
	AppName    string        `yaml:"name" env:"APP_NAME" env-default:"Blood Bank Console"`
	DataFolder string        `yaml:"folder" env:"FOLDER" env-default:"./data"`
	Env        string        `yaml:"env" env:"ENV" env-default:"DEV"`
	LogLevel   string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	FlashTTL   time.Duration `yaml:"flash_ttl" env:"FLASH_TTL" env-default:"3s"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetDataFolder() string {
	return e.DataFolder
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetFlashTTL() time.Duration {
	return e.FlashTTL
}
