package service

import (
	"context"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/coordinator"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/audit"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/nfc"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
)

// WalletService is the transfer lifecycle driven by the HTTP API.
// It is implemented by *coordinator.Coordinator.
type WalletService interface {
	Login(ctx context.Context, identity string) (coordinator.Session, error)
	Logout(ctx context.Context) error
	Session() (coordinator.Session, bool)
	Balance(ctx context.Context) (uint64, error)
	LedgerHistory(ctx context.Context, limit int) ([]ledger.Activity, error)

	CreateTransfer(ctx context.Context, req coordinator.CreateTransferRequest) (transfer.Record, error)
	SignTransfer(ctx context.Context) (transfer.Record, error)
	SendTransfer(ctx context.Context) (transfer.Record, error)
	Current() (transfer.Record, bool)
	ClearCurrent() error

	StartReceiving(ctx context.Context) error
	StopReceiving() error
	ReceiveStatus() coordinator.ReceiveStatus
	FinalizeCurrent(ctx context.Context) (transfer.Record, error)
	RejectCurrent(ctx context.Context, reason string) error

	Pending() []transfer.Record
	Completed() []transfer.Record
	Broadcast(ctx context.Context, id string) (string, error)
	BroadcastAll(ctx context.Context) (reconciliation.Summary, error)

	Capability(ctx context.Context) (nfc.Capability, error)
	PromptEnable(ctx context.Context) error
}

// HistoryService answers queries about queued transfers and their journal
type HistoryService interface {
	// GetTransfer returns a queued or completed transfer.
	// Returns nil if no queue holds the id.
	GetTransfer(ctx context.Context, id string) (*transfer.Record, error)

	// GetAuditTrail returns one page of the transfer's journal and the total
	// number of entries
	GetAuditTrail(ctx context.Context, id string, page, perPage int) ([]*audit.Entry, int64, error)
}

// TransferLookup finds a transfer in the durable queues
type TransferLookup interface {
	Lookup(id string) (transfer.Record, bool)
}

var (
	_ WalletService  = (*coordinator.Coordinator)(nil)
	_ TransferLookup = (*reconciliation.Store)(nil)
)
