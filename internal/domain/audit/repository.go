package audit

import (
	"context"
)

// Repository persists the append-only transfer journal
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	ListByTransfer(ctx context.Context, transferID string, limit, offset int) ([]*Entry, error)
	CountByTransfer(ctx context.Context, transferID string) (int64, error)
}

// ErrEntriesNotFound indicates a transfer without journal entries
type ErrEntriesNotFound struct {
	TransferID string
}

func (e ErrEntriesNotFound) Error() string {
	return "no audit entries for transfer: " + e.TransferID
}

// Is implements the errors.Is interface for ErrEntriesNotFound
func (e ErrEntriesNotFound) Is(target error) bool {
	t, ok := target.(ErrEntriesNotFound)
	if !ok {
		return false
	}
	// An empty target TransferID matches any ErrEntriesNotFound
	if t.TransferID == "" {
		return true
	}
	return e.TransferID == t.TransferID
}

// NopRepository discards entries; used when the journal is disabled
type NopRepository struct{}

func (NopRepository) Append(context.Context, *Entry) error { return nil }

func (NopRepository) ListByTransfer(_ context.Context, transferID string, _, _ int) ([]*Entry, error) {
	return nil, ErrEntriesNotFound{TransferID: transferID}
}

func (NopRepository) CountByTransfer(context.Context, string) (int64, error) { return 0, nil }
