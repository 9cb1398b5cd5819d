// Package file provides a JSON file implementation of the snapshot repository.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/observability/metrics"
	"rss-digest/internal/repository"
)

const backendName = "file"

// SnapshotRepo stores the snapshot as one JSON document. Writes go to a
// temporary file in the same directory that is renamed over the target.
type SnapshotRepo struct {
	path string
	mu   sync.Mutex
}

// NewSnapshotRepo returns a repository backed by path. The directory is
// created on first Save.
func NewSnapshotRepo(path string) *SnapshotRepo {
	return &SnapshotRepo{path: path}
}

// Path returns the snapshot file location.
func (r *SnapshotRepo) Path() string { return r.path }

// Load reads the snapshot. A missing file is an empty snapshot. Articles that
// fail validation are skipped with a warning.
func (r *SnapshotRepo) Load(ctx context.Context) (snap entity.Snapshot, err error) {
	start := time.Now()
	defer func() { metrics.RecordSnapshotOperation(backendName, "load", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return entity.Snapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	snap, err = r.read()
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("Load: %w", err)
	}
	return snap, nil
}

// Save writes snap atomically.
func (r *SnapshotRepo) Save(ctx context.Context, snap entity.Snapshot) (err error) {
	start := time.Now()
	defer func() { metrics.RecordSnapshotOperation(backendName, "save", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.write(snap); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Update reads the file, applies fn and writes the result while holding an
// exclusive lock on a sibling ".lock" file, so updaters in other processes
// sharing the path run one after the other.
func (r *SnapshotRepo) Update(ctx context.Context, fn func(entity.Snapshot) (entity.Snapshot, error)) (err error) {
	start := time.Now()
	defer func() { metrics.RecordSnapshotOperation(backendName, "update", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("Update: MkdirAll: %w", err)
	}
	unlock, err := lockFile(r.path + ".lock")
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	defer unlock()

	current, err := r.read()
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.write(next); err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return nil
}

// read decodes the file. The caller holds r.mu.
func (r *SnapshotRepo) read() (entity.Snapshot, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entity.Snapshot{}, nil
	}
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("ReadFile: %w", err)
	}

	var doc entity.Snapshot
	if err := json.Unmarshal(data, &doc); err != nil {
		return entity.Snapshot{}, fmt.Errorf("%w: %v", repository.ErrCorruptSnapshot, err)
	}

	valid := doc.Articles[:0]
	for _, a := range doc.Articles {
		if err := a.Validate(); err != nil {
			slog.Warn("skipping invalid stored article",
				slog.String("backend", backendName),
				slog.String("id", a.ID),
				slog.Any("error", err))
			continue
		}
		valid = append(valid, a)
	}
	doc.Articles = valid
	return doc, nil
}

// write replaces the file through a temporary sibling and a rename. The
// caller holds r.mu.
func (r *SnapshotRepo) write(snap entity.Snapshot) (err error) {
	if snap.Articles == nil {
		snap.Articles = []entity.Article{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("Marshal: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("MkdirAll: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("CreateTemp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("Write: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("Sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("Close: %w", err)
	}
	if err = os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("Rename: %w", err)
	}
	return nil
}

// Ping checks that the snapshot directory is reachable.
func (r *SnapshotRepo) Ping(_ context.Context) error {
	dir := filepath.Dir(r.path)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		// まだ一度も保存されていない
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
