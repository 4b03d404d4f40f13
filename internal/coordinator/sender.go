package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/wallet"
)

// CreateTransferRequest holds the user input of a new outgoing transfer
type CreateTransferRequest struct {
	Recipient transfer.Counterparty
	Amount    uint64 // lamports
	Memo      string
}

// CreateTransfer validates the input, checks the balance once and builds the
// unsigned ledger transaction. The balance is not checked again later.
func (c *Coordinator) CreateTransfer(ctx context.Context, req CreateTransferRequest) (transfer.Record, error) {
	if err := transfer.ValidateAmount(req.Amount); err != nil {
		return transfer.Record{}, err
	}
	if req.Amount > c.maxAmount {
		return transfer.Record{}, fmt.Errorf("%w: above the configured limit of %s", transfer.ErrInvalidAmount, transfer.FormatAmount(c.maxAmount))
	}
	if err := transfer.ValidateMemo(req.Memo); err != nil {
		return transfer.Record{}, err
	}
	if err := transfer.ValidateAddress(req.Recipient.Address); err != nil {
		return transfer.Record{}, fmt.Errorf("recipient: %w", err)
	}

	session, ok := c.Session()
	if !ok {
		return transfer.Record{}, ErrNotLoggedIn
	}
	if _, exists := c.Current(); exists {
		return transfer.Record{}, ErrCurrentTransferExists
	}

	release, err := c.acquire(createKey)
	if err != nil {
		return transfer.Record{}, err
	}
	defer release()

	balance, err := c.ledger.GetBalance(ctx, session.Account)
	if err != nil {
		return transfer.Record{}, fmt.Errorf("failed to read balance: %w", err)
	}
	if err := transfer.CheckBalance(req.Amount, c.feeEstimate, balance); err != nil {
		return transfer.Record{}, err
	}

	anchor, err := c.ledger.GetRecentAnchor(ctx)
	if err != nil {
		return transfer.Record{}, fmt.Errorf("failed to fetch ledger anchor: %w", err)
	}

	unsigned, err := c.ledger.BuildUnsignedTransfer(session.Account, req.Recipient.Address, req.Amount, req.Memo, anchor.Blockhash)
	if err != nil {
		return transfer.Record{}, fmt.Errorf("failed to build ledger transfer: %w", err)
	}

	r, err := transfer.New(transfer.NewParams{
		Account:         session.Account,
		Counterparty:    req.Recipient,
		Amount:          req.Amount,
		Fee:             c.feeEstimate,
		Memo:            req.Memo,
		Anchor:          anchor.Blockhash,
		UnsignedPayload: unsigned,
		CreatedAt:       c.now(),
	})
	if err != nil {
		return transfer.Record{}, err
	}

	c.mu.Lock()
	if c.session == nil || c.session.Account != session.Account {
		c.mu.Unlock()
		return transfer.Record{}, ErrNotLoggedIn
	}
	if c.current != nil {
		c.mu.Unlock()
		return transfer.Record{}, ErrCurrentTransferExists
	}
	c.current = &r
	c.draft = nil
	c.mu.Unlock()

	c.logger.Info("Transfer created",
		"transfer_id", r.ID,
		"amount", r.Amount,
		"fee", r.Fee,
		"recipient", r.Counterparty.Address,
	)
	c.record(ctx, r, shared.AuditActionCreated, "")
	return r.Clone(), nil
}

// SignTransfer asks the wallet to sign the current transfer. A SIGNED
// transfer is signed again from its retained draft, which is how a send that
// returned proximity.ErrResignRequired is recovered. The draft is rebuilt
// against a fresh anchor when the ledger is reachable.
func (c *Coordinator) SignTransfer(ctx context.Context) (transfer.Record, error) {
	session, current, err := c.currentFor(shared.TransferStatusCreated, shared.TransferStatusSigned)
	if err != nil {
		return transfer.Record{}, err
	}

	release, err := c.acquire(current.ID)
	if err != nil {
		return transfer.Record{}, err
	}
	defer release()

	draft := current
	if current.Status == shared.TransferStatusSigned {
		c.mu.Lock()
		retained := c.draft
		c.mu.Unlock()
		if retained == nil || retained.ID != current.ID {
			return transfer.Record{}, &transfer.InvalidTransitionError{ID: current.ID, From: current.Status, To: shared.TransferStatusSigned}
		}
		draft = c.reanchor(ctx, session, retained.Clone())
	}

	signedPayload, err := c.auth.Sign(ctx, draft.UnsignedPayload, session.token)
	if err != nil {
		if errors.Is(err, wallet.ErrAuthorization) {
			return transfer.Record{}, &AuthorizationError{Op: "sign", Err: err}
		}
		return transfer.Record{}, fmt.Errorf("failed to sign transfer: %w", err)
	}

	signed, err := transfer.ApplySigned(draft, signedPayload, transfer.NewNonce(), c.now())
	if err != nil {
		return transfer.Record{}, err
	}

	if !c.replaceCurrent(current.ID, signed, &draft) {
		return transfer.Record{}, ErrNoCurrentTransfer
	}

	c.logger.Info("Transfer signed", "transfer_id", signed.ID)
	c.record(ctx, signed, shared.AuditActionSigned, "")
	return signed.Clone(), nil
}

// SendTransfer transmits the signed current transfer over the proximity link.
// On failure the transfer stays SIGNED so the send can be retried. On success
// the transfer is journaled and discarded locally.
func (c *Coordinator) SendTransfer(ctx context.Context) (transfer.Record, error) {
	_, current, err := c.currentFor(shared.TransferStatusSigned)
	if err != nil {
		return transfer.Record{}, err
	}
	if current.Direction != shared.DirectionOutgoing {
		return transfer.Record{}, &transfer.InvalidTransitionError{ID: current.ID, From: current.Status, To: shared.TransferStatusSigned}
	}

	release, err := c.acquire(current.ID)
	if err != nil {
		return transfer.Record{}, err
	}
	defer release()

	c.mu.Lock()
	receiving := c.receiving
	c.receiving = false
	c.mu.Unlock()
	if receiving {
		c.logger.Info("Stopping receive to send", "transfer_id", current.ID)
	}

	if err := c.protocol.Send(ctx, current); err != nil {
		c.logger.Warn("Transfer send failed", "transfer_id", current.ID, "error", err)
		return transfer.Record{}, err
	}

	c.mu.Lock()
	if c.current != nil && c.current.ID == current.ID {
		c.current = nil
		c.draft = nil
	}
	c.mu.Unlock()

	c.record(ctx, current, shared.AuditActionTransmitted, "")
	return current, nil
}

// reanchor rebuilds draft against the latest anchor. Offline, the retained
// anchor is kept and the ledger decides at broadcast time.
func (c *Coordinator) reanchor(ctx context.Context, session Session, draft transfer.Record) transfer.Record {
	anchor, err := c.ledger.GetRecentAnchor(ctx)
	if err != nil {
		c.logger.Warn("Re-signing with the retained anchor", "transfer_id", draft.ID, "error", err)
		return draft
	}
	if anchor.Blockhash == draft.Anchor {
		return draft
	}

	unsigned, err := c.ledger.BuildUnsignedTransfer(session.Account, draft.Counterparty.Address, draft.Amount, draft.Memo, anchor.Blockhash)
	if err != nil {
		c.logger.Warn("Re-signing with the retained anchor", "transfer_id", draft.ID, "error", err)
		return draft
	}
	next, err := transfer.Reanchor(draft, anchor.Blockhash, unsigned)
	if err != nil {
		c.logger.Warn("Re-signing with the retained anchor", "transfer_id", draft.ID, "error", err)
		return draft
	}
	c.logger.Info("Transfer re-anchored", "transfer_id", draft.ID, "anchor", anchor.Blockhash)
	return next
}

// replaceCurrent swaps in next when the current transfer still has id
func (c *Coordinator) replaceCurrent(id string, next transfer.Record, draft *transfer.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.ID != id {
		return false
	}
	c.current = &next
	if draft != nil {
		d := draft.Clone()
		c.draft = &d
	}
	return true
}
