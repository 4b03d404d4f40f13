package shared

import (
	"time"
)

// TransferEvent defines a lifecycle notification published after a durable state change
type TransferEvent struct {
	EventID         string         `json:"event_id"`
	Type            EventType      `json:"type"`
	TransferID      string         `json:"transfer_id"`
	Direction       Direction      `json:"direction"`
	Status          TransferStatus `json:"status"`
	Amount          uint64         `json:"amount"` // lamports
	Fee             uint64         `json:"fee"`
	From            string         `json:"from"`
	To              string         `json:"to"`
	LedgerSignature string         `json:"ledger_signature,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	OccurredAt      time.Time      `json:"occurred_at"`
}
