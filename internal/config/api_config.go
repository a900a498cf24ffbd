package config

import (
	"strings"
	"time"
)

type API struct {
	BaseURL           string        `yaml:"base_url" env:"API_BASE_URL" env-default:"http://localhost:8000/api"`
	Timeout           time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"15s"`
	RefreshCoalescing bool          `yaml:"refresh_coalescing" env:"REFRESH_COALESCING" env-default:"false"`
}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend base URL without a trailing slash
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.BaseURL, "/")
}

func (a API) GetAPITimeout() time.Duration {
	return a.Timeout
}

// GetRefreshCoalescing reports whether concurrent 401s share one refresh call.
// Off by default: each failing request refreshes independently.
func (a API) GetRefreshCoalescing() bool {
	return a.RefreshCoalescing
}
