package queue

import (
	"context"
	"errors"
	"fmt"
)

// Repository loads and saves the queue snapshot as one atomic document
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// ErrSnapshotNotFound indicates nothing has been persisted yet
var ErrSnapshotNotFound = errors.New("queue snapshot not found")

// ErrCorruptSnapshot indicates the stored document could not be decoded
type ErrCorruptSnapshot struct {
	Key string
	Err error
}

func (e ErrCorruptSnapshot) Error() string {
	return fmt.Sprintf("corrupt queue snapshot %q: %v", e.Key, e.Err)
}

func (e ErrCorruptSnapshot) Unwrap() error {
	return e.Err
}

type errUnknownVersion int

func (v errUnknownVersion) Error() string {
	return fmt.Sprintf("unsupported snapshot version %d", int(v))
}
