package src

import (
	"fmt"

	"nodegraph_poc/internal/config"
	"nodegraph_poc/src/model"

	"github.com/kelseyhightower/envconfig"
)

// Config is keyed LOG_*, FETCH_* and SNAPSHOT_* after the field names
type Config struct {
	Log      model.LogConfig
	Fetch    model.FetchConfig
	Snapshot model.SnapshotConfig
}

// LoadConfig reads the environment and applies the optional endpoints file
func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %v", err)
	}

	if cfg.Fetch.EndpointsFile != "" {
		endpoints, err := config.LoadEndpoints(cfg.Fetch.EndpointsFile)
		if err != nil {
			return nil, err
		}
		cfg.Fetch = config.ApplyEndpoints(cfg.Fetch, endpoints)
	}

	return &cfg, nil
}
