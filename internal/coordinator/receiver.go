package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/envelope"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/proximity"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
)

// ReceiveStatus reports the receive attempt
type ReceiveStatus struct {
	Listening bool
	LastError error // last discarded tag or refused envelope
}

// StartReceiving listens for one inbound transfer. Listening stops after the
// first envelope that becomes the current transfer.
func (c *Coordinator) StartReceiving(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.session == nil:
		c.mu.Unlock()
		return ErrNotLoggedIn
	case c.current != nil:
		c.mu.Unlock()
		return ErrCurrentTransferExists
	}
	c.lastTag = nil
	c.mu.Unlock()

	err := c.protocol.Listen(ctx, proximity.Handler{
		OnPayload: c.onEnvelope,
		OnError:   c.onTagError,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.receiving = true
	c.mu.Unlock()
	return nil
}

// StopReceiving cancels the receive attempt. It is safe to call when not receiving.
func (c *Coordinator) StopReceiving() error {
	c.mu.Lock()
	c.receiving = false
	c.mu.Unlock()
	return c.protocol.Stop()
}

func (c *Coordinator) ReceiveStatus() ReceiveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ReceiveStatus{Listening: c.receiving, LastError: c.lastTag}
}

// ReceiveTransfer admits a decoded envelope as the current RECEIVED transfer
func (c *Coordinator) ReceiveTransfer(ctx context.Context, env envelope.Envelope) (transfer.Record, error) {
	if err := proximity.ValidatePayload(env, c.now()); err != nil {
		return transfer.Record{}, err
	}

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return transfer.Record{}, ErrNotLoggedIn
	}
	if env.Payload.Metadata.To != session.Account {
		return transfer.Record{}, &proximity.SemanticValidationError{Field: "to", Err: ErrNotRecipient}
	}
	if c.store.Seen(env.Payload.ID, env.Payload.Nonce) {
		return transfer.Record{}, fmt.Errorf("%w: %s", reconciliation.ErrDuplicateTransfer, env.Payload.ID)
	}

	received, err := transfer.ApplyReceived(env.Payload.Inbound(), c.now())
	if err != nil {
		return transfer.Record{}, err
	}

	c.mu.Lock()
	if c.current != nil {
		existing := c.current.Clone()
		c.mu.Unlock()
		if existing.ID == received.ID && existing.Direction == shared.DirectionIncoming {
			return existing, nil
		}
		return transfer.Record{}, ErrCurrentTransferExists
	}
	c.current = &received
	c.draft = nil
	c.mu.Unlock()

	c.logger.Info("Transfer received",
		"transfer_id", received.ID,
		"amount", received.Amount,
		"sender", received.Counterparty.Address,
	)
	c.record(ctx, received, shared.AuditActionReceived, "")
	return received.Clone(), nil
}

// FinalizeCurrent accepts the received transfer and queues it for broadcast.
// If the queue cannot be persisted the transfer stays RECEIVED.
func (c *Coordinator) FinalizeCurrent(ctx context.Context) (transfer.Record, error) {
	_, current, err := c.currentFor(shared.TransferStatusReceived)
	if err != nil {
		return transfer.Record{}, err
	}

	release, err := c.acquire(current.ID)
	if err != nil {
		return transfer.Record{}, err
	}
	defer release()

	finalized, err := transfer.Finalize(current, c.now())
	if err != nil {
		return transfer.Record{}, err
	}

	queued, err := c.store.EnqueuePending(ctx, finalized)
	if err != nil {
		c.logger.Error("Failed to queue finalized transfer", "transfer_id", current.ID, "error", err)
		return transfer.Record{}, err
	}

	c.mu.Lock()
	if c.current != nil && c.current.ID == current.ID {
		c.current = nil
	}
	c.mu.Unlock()

	c.record(ctx, queued, shared.AuditActionQueued, "")
	c.publish(ctx, queued, shared.EventTypeTransferQueued, "")
	return queued, nil
}

// RejectCurrent discards the received transfer
func (c *Coordinator) RejectCurrent(ctx context.Context, reason string) error {
	_, current, err := c.currentFor(shared.TransferStatusReceived, shared.TransferStatusFinalized)
	if err != nil {
		return err
	}
	if err := transfer.Reject(current); err != nil {
		return err
	}

	release, err := c.acquire(current.ID)
	if err != nil {
		return err
	}
	defer release()

	c.mu.Lock()
	if c.current != nil && c.current.ID == current.ID {
		c.current = nil
	}
	c.mu.Unlock()

	c.logger.Info("Transfer rejected", "transfer_id", current.ID, "reason", reason)
	c.record(ctx, current, shared.AuditActionRejected, reason)
	c.publish(ctx, current, shared.EventTypeTransferRejected, reason)
	return nil
}

// onEnvelope runs on the driver's delivery path
func (c *Coordinator) onEnvelope(env envelope.Envelope) {
	if _, err := c.ReceiveTransfer(context.Background(), env); err != nil {
		c.logger.Warn("Refused inbound transfer", "transfer_id", env.Payload.ID, "error", err)
		c.mu.Lock()
		c.lastTag = err
		c.mu.Unlock()
		if !errors.Is(err, ErrCurrentTransferExists) {
			return
		}
	}

	if err := c.StopReceiving(); err != nil {
		c.logger.Warn("Failed to stop listening", "error", err)
	}
}

func (c *Coordinator) onTagError(err error) {
	c.mu.Lock()
	c.lastTag = err
	c.mu.Unlock()

	var tagErr *proximity.TagError
	if !errors.As(err, &tagErr) {
		return
	}
	if dlqErr := c.deadLetters.PublishDiscardedTag(context.Background(), tagErr.Data, tagErr.Err.Error()); dlqErr != nil {
		c.logger.Warn("Failed to keep discarded tag", "error", dlqErr)
	}
}
