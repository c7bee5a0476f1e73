package datastore

import (
	"context"
	"errors"
	"fmt"

	"nodegraph_poc/pkg"
)

// Snapshotter keeps the last good list of each resource outside the process
type Snapshotter interface {
	Save(ctx context.Context, resource pkg.Resource, records []pkg.Record) error
	Load(ctx context.Context, resource pkg.Resource) ([]pkg.Record, bool, error)
}

// WarmStart restores every resource that has a snapshot and returns how
// many lists were seeded. Lists already fetched are left alone.
func (s *Store) WarmStart(ctx context.Context) (int, error) {
	if s.snapshot == nil {
		return 0, nil
	}

	restored := 0
	var errs []error
	for _, r := range pkg.Resources {
		records, found, err := s.snapshot.Load(ctx, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to load %s snapshot: %w", r, err))
			continue
		}
		if !found {
			continue
		}
		if s.Restore(r, records) {
			restored++
			s.log.Debug().Str("resource", string(r)).Int("count", len(records)).Msg("restored from snapshot")
		}
	}

	return restored, errors.Join(errs...)
}
