// Package storage provides the snapshot backends used to warm-start the
// datastore: Redis and plain JSON files.
package storage

import (
	"context"
	"fmt"
	"strings"

	"nodegraph_poc/src/datastore"
	"nodegraph_poc/src/model"
)

// Open builds the snapshotter selected by cfg. It returns a nil
// snapshotter for the "none" backend. The returned close func is always
// safe to call.
func Open(ctx context.Context, cfg model.SnapshotConfig) (datastore.Snapshotter, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(cfg.Backend) {
	case "", model.SnapshotNone:
		return nil, noop, nil
	case model.SnapshotFile:
		return NewFileSnapshotter(cfg.Dir, cfg.TTL), noop, nil
	case model.SnapshotRedis:
		r, err := NewRedisSnapshotter(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown snapshot backend: %q", cfg.Backend)
	}
}
