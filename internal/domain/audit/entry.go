package audit

import (
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
)

// Entry is one journaled lifecycle action of a transfer
type Entry struct {
	ID              int64                 `json:"id"`
	TransferID      string                `json:"transfer_id"`
	Direction       shared.Direction      `json:"direction"`
	Action          shared.AuditAction    `json:"action"`
	Status          shared.TransferStatus `json:"status"`
	Amount          uint64                `json:"amount"` // lamports
	Counterparty    string                `json:"counterparty"`
	LedgerSignature string                `json:"ledger_signature,omitempty"`
	Detail          string                `json:"detail,omitempty"`
	OccurredAt      time.Time             `json:"occurred_at"`
}

// NewEntry builds an audit entry describing action applied to r
func NewEntry(r transfer.Record, action shared.AuditAction, detail string) *Entry {
	return &Entry{
		TransferID:      r.ID,
		Direction:       r.Direction,
		Action:          action,
		Status:          r.Status,
		Amount:          r.Amount,
		Counterparty:    r.Counterparty.Address,
		LedgerSignature: r.LedgerSignature,
		Detail:          detail,
		OccurredAt:      time.Now().UTC(),
	}
}
