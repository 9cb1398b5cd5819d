// Package repository declares the persistence ports of the engine.
package repository

import (
	"context"
	"errors"

	"rss-digest/internal/domain/entity"
)

// ErrCorruptSnapshot indicates stored data exists but cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// SnapshotRepository persists the whole article collection and the last
// refresh timestamp as one unit.
//
// Load returns an empty snapshot, not an error, when nothing was saved yet.
// Save replaces the previous snapshot atomically: after a failed Save, Load
// still returns the previous snapshot. IsNew is never persisted.
type SnapshotRepository interface {
	Load(ctx context.Context) (entity.Snapshot, error)
	Save(ctx context.Context, snap entity.Snapshot) error
}

// SnapshotUpdater reads, modifies and writes the snapshot as one unit that
// is serialized against every other Update on the same backend, including
// those of other processes. fn receives the current persisted snapshot and
// returns the one to store; when fn fails nothing is written.
type SnapshotUpdater interface {
	Update(ctx context.Context, fn func(entity.Snapshot) (entity.Snapshot, error)) error
}

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
