// Package kvstore implements the queue repository on top of a key-value store.
// The whole snapshot lives under one key so a save is a single atomic write.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/queue"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/persistence"
)

// QueueRepository implements queue.Repository over a persistence.KeyValueStore
type QueueRepository struct {
	store  persistence.KeyValueStore
	key    string
	logger *slog.Logger
}

// NewQueueRepository creates a repository storing the snapshot under key
func NewQueueRepository(logger *slog.Logger, store persistence.KeyValueStore, key string) queue.Repository {
	return &QueueRepository{
		store:  store,
		key:    key,
		logger: logger,
	}
}

// Load returns queue.ErrSnapshotNotFound when nothing was saved yet and
// queue.ErrCorruptSnapshot when the stored document cannot be decoded.
func (r *QueueRepository) Load(ctx context.Context) (*queue.Snapshot, error) {
	data, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, persistence.ErrKeyNotFound) {
			return nil, queue.ErrSnapshotNotFound
		}
		r.logger.Error("Failed to read queue snapshot", "key", r.key, "error", err)
		return nil, fmt.Errorf("failed to read queue snapshot: %w", err)
	}

	snapshot, err := queue.UnmarshalSnapshot(r.key, data)
	if err != nil {
		r.logger.Warn("Queue snapshot is corrupt", "key", r.key, "error", err)
		return nil, err
	}
	return snapshot, nil
}

func (r *QueueRepository) Save(ctx context.Context, snapshot *queue.Snapshot) error {
	data, err := snapshot.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode queue snapshot: %w", err)
	}

	if err := r.store.Put(ctx, r.key, data); err != nil {
		r.logger.Error("Failed to save queue snapshot",
			"key", r.key,
			"pending", len(snapshot.Pending),
			"completed", len(snapshot.Completed),
			"error", err)
		return fmt.Errorf("failed to save queue snapshot: %w", err)
	}

	r.logger.Debug("Saved queue snapshot",
		"pending", len(snapshot.Pending),
		"completed", len(snapshot.Completed))
	return nil
}
