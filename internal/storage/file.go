package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nodegraph_poc/pkg"
	"nodegraph_poc/src/datastore"
)

// FileSnapshotter keeps one JSON file per resource under baseDir.
// Files older than ttl are treated as missing.
type FileSnapshotter struct {
	baseDir string
	ttl     time.Duration
}

// NewFileSnapshotter creates a file-based snapshotter. A ttl of zero
// never expires snapshots.
func NewFileSnapshotter(baseDir string, ttl time.Duration) *FileSnapshotter {
	return &FileSnapshotter{
		baseDir: baseDir,
		ttl:     ttl,
	}
}

func (f *FileSnapshotter) path(resource pkg.Resource) string {
	return filepath.Join(f.baseDir, fmt.Sprintf("%s.json", resource))
}

func (f *FileSnapshotter) expired(info os.FileInfo) bool {
	return f.ttl > 0 && time.Since(info.ModTime()) > f.ttl
}

// Save writes the list, replacing the previous file atomically
func (f *FileSnapshotter) Save(ctx context.Context, resource pkg.Resource, records []pkg.Record) error {
	if err := os.MkdirAll(f.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := datastore.EncodeList(records)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.baseDir, string(resource)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path(resource)); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

// Load reads the list; found is false when the file is missing or expired
func (f *FileSnapshotter) Load(ctx context.Context, resource pkg.Resource) ([]pkg.Record, bool, error) {
	path := f.path(resource)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat snapshot file: %w", err)
	}
	if f.expired(info) {
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	records, err := datastore.DecodeList(data)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt snapshot file %s: %w", path, err)
	}
	return records, true, nil
}

// SnapshotStats describes one snapshot file
type SnapshotStats struct {
	Resource      pkg.Resource `json:"resource"`
	Records       int          `json:"records"`
	FileSizeBytes int64        `json:"file_size_bytes"`
	ModifiedAt    time.Time    `json:"modified_at"`
	Expired       bool         `json:"expired"`
}

// Stats returns statistics about a snapshot, or nil when none exists
func (f *FileSnapshotter) Stats(resource pkg.Resource) (*SnapshotStats, error) {
	path := f.path(resource)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	records, err := datastore.DecodeList(data)
	if err != nil {
		return nil, fmt.Errorf("corrupt snapshot file %s: %w", path, err)
	}

	return &SnapshotStats{
		Resource:      resource,
		Records:       len(records),
		FileSizeBytes: info.Size(),
		ModifiedAt:    info.ModTime(),
		Expired:       f.expired(info),
	}, nil
}

// Prune removes expired snapshot files and returns how many were deleted
func (f *FileSnapshotter) Prune() (int, error) {
	removed := 0
	for _, r := range pkg.Resources {
		info, err := os.Stat(f.path(r))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to stat snapshot file: %w", err)
		}
		if !f.expired(info) {
			continue
		}
		if err := os.Remove(f.path(r)); err != nil {
			return removed, fmt.Errorf("failed to remove expired snapshot: %w", err)
		}
		removed++
	}
	return removed, nil
}
