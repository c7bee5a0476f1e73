package model

import (
	"strings"
	"time"

	"nodegraph_poc/pkg"
)

// ----------------------------------------------------
// ================ Logging ================
// LogConfig holds configuration for the global logger
type LogConfig struct {
	Level      string `split_words:"true" default:"info"`
	Format     string `split_words:"true" default:"console"` // console, json
	Output     string `split_words:"true" default:"stdout"`  // stdout, stderr, file
	FilePath   string `split_words:"true" default:"logs/nodegraph.log"`
	TimeFormat string `split_words:"true" default:"rfc3339"`

	DatastoreLevel string `split_words:"true"` // empty inherits Level
}

// ----------------------------------------------------
// ================ Fetch ================
const (
	DefaultBaseURL = "http://localhost:3001"
)

// FetchConfig describes where the three lists are fetched from
type FetchConfig struct {
	BaseURL       string        `split_words:"true" default:"http://localhost:3001"`
	Timeout       time.Duration `split_words:"true" default:"0s"` // 0 disables
	EndpointsFile string        `split_words:"true"`
	NodesPath     string        `split_words:"true" default:"/nodes"`
	EdgesPath     string        `split_words:"true" default:"/edges"`
	QuotesPath    string        `split_words:"true" default:"/quotes"`
}

// DefaultFetchConfig returns the fixed local endpoints
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		BaseURL:    DefaultBaseURL,
		NodesPath:  "/" + string(pkg.ResourceNodes),
		EdgesPath:  "/" + string(pkg.ResourceEdges),
		QuotesPath: "/" + string(pkg.ResourceQuotes),
	}
}

// Path returns the endpoint path of a resource, falling back to /<resource>
func (c FetchConfig) Path(r pkg.Resource) string {
	var p string
	switch r {
	case pkg.ResourceNodes:
		p = c.NodesPath
	case pkg.ResourceEdges:
		p = c.EdgesPath
	case pkg.ResourceQuotes:
		p = c.QuotesPath
	}
	if p == "" {
		p = string(r)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// URL joins the base URL and the resource path
func (c FetchConfig) URL(r pkg.Resource) string {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + c.Path(r)
}

// ----------------------------------------------------
// ================ Snapshot ================
const (
	SnapshotNone  = "none"
	SnapshotRedis = "redis"
	SnapshotFile  = "file"
)

// SnapshotConfig selects where the last good lists are mirrored.
// Fields are keyed by split_words rather than envconfig tags: a tag also
// acts as an unprefixed fallback name, wanted only for REDIS_URL.
type SnapshotConfig struct {
	Backend  string        `split_words:"true" default:"none"`
	Dir      string        `split_words:"true" default:"data/snapshots"`
	TTL      time.Duration `split_words:"true" default:"1h"`
	RedisURL string        `envconfig:"REDIS_URL"` // SNAPSHOT_REDIS_URL, then REDIS_URL
}
