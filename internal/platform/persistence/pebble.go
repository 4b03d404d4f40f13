package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleStore is the default on-device KeyValueStore
type PebbleStore struct {
	db     *pebble.DB
	logger *slog.Logger
	closed bool
	mu     sync.RWMutex
}

var _ KeyValueStore = (*PebbleStore)(nil)

// NewPebbleStore opens (or creates) the store under path
func NewPebbleStore(path string, logger *slog.Logger) (*PebbleStore, error) {
	if path == "" {
		return nil, errors.New("storage path cannot be empty")
	}
	return openPebble(path, vfs.Default, logger)
}

// NewInMemoryPebbleStore opens a store backed by memory only
func NewInMemoryPebbleStore(logger *slog.Logger) (*PebbleStore, error) {
	return openPebble("", vfs.NewMem(), logger)
}

func openPebble(path string, fs vfs.FS, logger *slog.Logger) (*PebbleStore, error) {
	opts := &pebble.Options{
		FS:           fs,
		Cache:        pebble.NewCache(8 << 20),
		MemTableSize: 4 << 20,
	}
	defer opts.Cache.Unref()

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store: %w", err)
	}

	logger.Info("Opened pebble store", "path", path)
	return &PebbleStore{db: db, logger: logger}, nil
}

func (p *PebbleStore) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrStoreClosed
	}

	value, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Put writes value with a synced commit so it survives a crash
func (p *PebbleStore) Put(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrStoreClosed
	}

	if err := p.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

func (p *PebbleStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close pebble store: %w", err)
	}
	p.logger.Info("Closed pebble store")
	return nil
}
