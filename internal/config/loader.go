package config

import (
	"fmt"
	"os"

	"nodegraph_poc/pkg"
	"nodegraph_poc/src/model"

	"gopkg.in/yaml.v3"
)

// EndpointsFile represents the structure of an endpoints yaml file
type EndpointsFile struct {
	BaseURL string            `yaml:"base_url"`
	Paths   map[string]string `yaml:"paths"`
}

// LoadEndpoints loads endpoint overrides from a yaml file
func LoadEndpoints(filepath string) (*EndpointsFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("error reading endpoints file: %w", err)
	}

	var endpoints EndpointsFile
	err = yaml.Unmarshal(data, &endpoints)
	if err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	for name := range endpoints.Paths {
		if _, err := pkg.ParseResource(name); err != nil {
			return nil, fmt.Errorf("invalid endpoints file %s: %w", filepath, err)
		}
	}

	return &endpoints, nil
}

// ApplyEndpoints overlays non-empty values from the file onto cfg
func ApplyEndpoints(cfg model.FetchConfig, endpoints *EndpointsFile) model.FetchConfig {
	if endpoints == nil {
		return cfg
	}
	if endpoints.BaseURL != "" {
		cfg.BaseURL = endpoints.BaseURL
	}
	if p := endpoints.Paths[string(pkg.ResourceNodes)]; p != "" {
		cfg.NodesPath = p
	}
	if p := endpoints.Paths[string(pkg.ResourceEdges)]; p != "" {
		cfg.EdgesPath = p
	}
	if p := endpoints.Paths[string(pkg.ResourceQuotes)]; p != "" {
		cfg.QuotesPath = p
	}
	return cfg
}
