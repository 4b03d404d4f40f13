package reconciliation

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState      = errors.New("transfer is not in a queueable state")
	ErrDuplicateTransfer = errors.New("transfer is already queued")
	ErrOffline           = errors.New("ledger is unreachable")
)

// NotFoundError indicates no pending transfer has the given id
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("pending transfer %s not found", e.ID)
}

// Is matches any NotFoundError when the target carries no id
func (e NotFoundError) Is(target error) bool {
	t, ok := target.(NotFoundError)
	if !ok {
		return false
	}
	return t.ID == "" || t.ID == e.ID
}

// BroadcastKind classifies a failed broadcast
type BroadcastKind string

const (
	BroadcastRejected    BroadcastKind = "REJECTED"
	BroadcastNetwork     BroadcastKind = "NETWORK"
	BroadcastTimeout     BroadcastKind = "TIMEOUT"
	BroadcastUnconfirmed BroadcastKind = "UNCONFIRMED"
)

// BroadcastError reports a failed submit or confirm. The transfer stays pending.
type BroadcastError struct {
	ID        string
	Kind      BroadcastKind
	Signature string // set when the ledger accepted the submission
	Err       error
}

func (e *BroadcastError) Error() string {
	if e.Signature != "" {
		return fmt.Sprintf("broadcast of %s failed (%s, signature %s): %v", e.ID, e.Kind, e.Signature, e.Err)
	}
	return fmt.Sprintf("broadcast of %s failed (%s): %v", e.ID, e.Kind, e.Err)
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed write of the queue document. The
// in-memory queues are left as they were before the operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist queues after %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
