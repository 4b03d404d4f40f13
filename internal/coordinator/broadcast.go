package coordinator

import (
	"context"
	"errors"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
)

// Broadcast submits one pending transfer and waits for confirmation
func (c *Coordinator) Broadcast(ctx context.Context, id string) (string, error) {
	release, err := c.acquire(id)
	if err != nil {
		return "", err
	}
	defer release()

	if r, ok := c.store.Lookup(id); ok && r.Status == shared.TransferStatusCompleted {
		return r.LedgerSignature, nil
	}

	signature, err := c.store.BroadcastOne(ctx, id)
	c.afterBroadcast(ctx, id, err)
	return signature, err
}

// BroadcastAll attempts every pending transfer. It implements
// reconciliation.Batch so background sweeps are journaled the same way.
func (c *Coordinator) BroadcastAll(ctx context.Context) (reconciliation.Summary, error) {
	summary := c.store.BroadcastAll(ctx)
	for _, id := range summary.Succeeded {
		c.afterBroadcast(ctx, id, nil)
	}
	for _, f := range summary.Failed {
		c.afterBroadcast(ctx, f.ID, f.Err)
	}
	return summary, ctx.Err()
}

func (c *Coordinator) afterBroadcast(ctx context.Context, id string, err error) {
	if errors.Is(err, reconciliation.NotFoundError{}) {
		return
	}
	r, ok := c.store.Lookup(id)
	if !ok {
		return
	}

	if err != nil {
		c.record(ctx, r, shared.AuditActionFailed, err.Error())
		return
	}
	c.record(ctx, r, shared.AuditActionBroadcast, "")
	c.publish(ctx, r, shared.EventTypeTransferCompleted, "")
}

var _ reconciliation.Batch = (*Coordinator)(nil)
