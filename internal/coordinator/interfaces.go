package coordinator

import (
	"context"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/nfc"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/wallet"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/proximity"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
)

// LedgerClient is the read and build side of the ledger adapter
type LedgerClient interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetRecentAnchor(ctx context.Context) (ledger.Anchor, error)
	BuildUnsignedTransfer(from, to string, lamports uint64, memo, anchor string) ([]byte, error)
	History(ctx context.Context, address string, limit int) ([]ledger.Activity, error)
}

// Authorizer is the wallet that owns the signing key
type Authorizer interface {
	Authorize(ctx context.Context, identity string) (wallet.Authorization, error)
	Deauthorize(ctx context.Context, token string) error
	Sign(ctx context.Context, unsigned []byte, token string) ([]byte, error)
}

// Protocol is the proximity link
type Protocol interface {
	State() proximity.State
	CheckCapability(ctx context.Context) (nfc.Capability, error)
	PromptEnable(ctx context.Context) error
	Send(ctx context.Context, r transfer.Record) error
	Listen(ctx context.Context, h proximity.Handler) error
	Stop() error
}

// Store is the reconciliation store holding the durable queues
type Store interface {
	EnqueuePending(ctx context.Context, r transfer.Record) (transfer.Record, error)
	BroadcastOne(ctx context.Context, id string) (string, error)
	BroadcastAll(ctx context.Context) reconciliation.Summary
	Pending() []transfer.Record
	Completed() []transfer.Record
	Lookup(id string) (transfer.Record, bool)
	Seen(id, nonce string) bool
}

// EventPublisher receives lifecycle events after durable state changes
type EventPublisher interface {
	Publish(ctx context.Context, event shared.TransferEvent) error
}

// DeadLetterPublisher keeps inbound tags that were discarded
type DeadLetterPublisher interface {
	PublishDiscardedTag(ctx context.Context, data []byte, reason string) error
}

var (
	_ Protocol     = (*proximity.Protocol)(nil)
	_ Store        = (*reconciliation.Store)(nil)
	_ LedgerClient = (*ledger.Client)(nil)
	_ Authorizer   = (*wallet.KeypairAuthorizer)(nil)
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, shared.TransferEvent) error { return nil }

func (nopPublisher) PublishDiscardedTag(context.Context, []byte, string) error { return nil }
