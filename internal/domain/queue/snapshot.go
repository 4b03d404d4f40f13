package queue

import (
	"encoding/json"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
)

// SnapshotVersion is the layout version written into every persisted snapshot
const SnapshotVersion = 1

// Snapshot is the single durable document holding both reconciliation queues
type Snapshot struct {
	Version   int               `json:"version" bson:"version"`
	Pending   []transfer.Record `json:"pending" bson:"pending"`
	Completed []transfer.Record `json:"completed" bson:"completed"`
	SavedAt   time.Time         `json:"saved_at" bson:"saved_at"`
}

// NewSnapshot deep-copies both queues into a snapshot ready to be saved
func NewSnapshot(pending, completed []transfer.Record) *Snapshot {
	return &Snapshot{
		Version:   SnapshotVersion,
		Pending:   cloneRecords(pending),
		Completed: cloneRecords(completed),
		SavedAt:   time.Now().UTC(),
	}
}

// Marshal encodes the snapshot document
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes a snapshot document, reporting undecodable data as ErrCorruptSnapshot
func UnmarshalSnapshot(key string, data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, ErrCorruptSnapshot{Key: key, Err: err}
	}
	if s.Version > SnapshotVersion {
		return nil, ErrCorruptSnapshot{Key: key, Err: errUnknownVersion(s.Version)}
	}
	if s.Pending == nil {
		s.Pending = []transfer.Record{}
	}
	if s.Completed == nil {
		s.Completed = []transfer.Record{}
	}
	return &s, nil
}

func cloneRecords(records []transfer.Record) []transfer.Record {
	out := make([]transfer.Record, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out
}
