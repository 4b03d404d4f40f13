package transfer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
)

// ApplySigned attaches the wallet signature to a CREATED transfer
func ApplySigned(r Record, signedPayload []byte, nonce string, at time.Time) (Record, error) {
	if r.Status != shared.TransferStatusCreated {
		return Record{}, &InvalidTransitionError{ID: r.ID, From: r.Status, To: shared.TransferStatusSigned}
	}
	if len(signedPayload) == 0 {
		return Record{}, ErrMissingPayload
	}
	if nonce == "" {
		return Record{}, ErrMissingNonce
	}

	next := r.Clone()
	next.SignedPayload = bytes.Clone(signedPayload)
	next.Nonce = nonce
	next.Status = shared.TransferStatusSigned
	signedAt := notBefore(at, r.Timestamps.latest())
	next.Timestamps.Signed = &signedAt
	return next, nil
}

// Reanchor rebinds a CREATED transfer to a fresher anchor and the unsigned
// transaction built against it
func Reanchor(r Record, anchor string, unsigned []byte) (Record, error) {
	if r.Status != shared.TransferStatusCreated || r.Direction != shared.DirectionOutgoing {
		return Record{}, &InvalidTransitionError{ID: r.ID, From: r.Status, To: shared.TransferStatusCreated}
	}
	if len(unsigned) == 0 {
		return Record{}, ErrMissingPayload
	}

	next := r.Clone()
	next.Anchor = anchor
	next.UnsignedPayload = bytes.Clone(unsigned)
	return next, nil
}

// ApplyReceived builds a RECEIVED transfer from a decoded envelope payload
func ApplyReceived(in Inbound, at time.Time) (Record, error) {
	if in.ID == "" {
		return Record{}, ErrMissingID
	}
	if len(in.SignedPayload) == 0 {
		return Record{}, ErrMissingPayload
	}
	if in.Nonce == "" {
		return Record{}, ErrMissingNonce
	}
	if err := ValidateAmount(in.Amount); err != nil {
		return Record{}, err
	}
	if err := ValidateMemo(in.Memo); err != nil {
		return Record{}, err
	}
	if err := ValidateAddress(in.From); err != nil {
		return Record{}, fmt.Errorf("from: %w", err)
	}
	if err := ValidateAddress(in.To); err != nil {
		return Record{}, fmt.Errorf("to: %w", err)
	}

	createdAt := in.SentAt
	if createdAt.IsZero() || createdAt.After(at) {
		createdAt = at
	}
	receivedAt := at

	return Record{
		ID:        in.ID,
		Direction: shared.DirectionIncoming,
		Account:   in.To,
		Counterparty: Counterparty{
			DisplayName: in.SenderName,
			Address:     in.From,
		},
		Amount:        in.Amount,
		Fee:           in.Fee,
		Memo:          in.Memo,
		Anchor:        in.Anchor,
		SignedPayload: bytes.Clone(in.SignedPayload),
		Nonce:         in.Nonce,
		Status:        shared.TransferStatusReceived,
		Timestamps: Timestamps{
			Created:  createdAt,
			Received: &receivedAt,
		},
	}, nil
}

// Finalize accepts a RECEIVED transfer
func Finalize(r Record, at time.Time) (Record, error) {
	if r.Status != shared.TransferStatusReceived {
		return Record{}, &InvalidTransitionError{ID: r.ID, From: r.Status, To: shared.TransferStatusFinalized}
	}

	next := r.Clone()
	next.Status = shared.TransferStatusFinalized
	finalizedAt := notBefore(at, r.Timestamps.latest())
	next.Timestamps.Finalized = &finalizedAt
	return next, nil
}

// MarkPendingBroadcast queues a FINALIZED transfer for the ledger
func MarkPendingBroadcast(r Record) (Record, error) {
	if r.Status != shared.TransferStatusFinalized {
		return Record{}, &InvalidTransitionError{ID: r.ID, From: r.Status, To: shared.TransferStatusPendingBroadcast}
	}

	next := r.Clone()
	next.Status = shared.TransferStatusPendingBroadcast
	return next, nil
}

// MarkCompleted records the ledger confirmation of a queued transfer
func MarkCompleted(r Record, ledgerSignature string, at time.Time) (Record, error) {
	if r.Status != shared.TransferStatusPendingBroadcast {
		return Record{}, &InvalidTransitionError{ID: r.ID, From: r.Status, To: shared.TransferStatusCompleted}
	}
	if ledgerSignature == "" {
		return Record{}, fmt.Errorf("transfer %s: ledger signature is required", r.ID)
	}

	next := r.Clone()
	next.Status = shared.TransferStatusCompleted
	next.LedgerSignature = ledgerSignature
	broadcastedAt := notBefore(at, r.Timestamps.latest())
	next.Timestamps.Broadcasted = &broadcastedAt
	return next, nil
}

// Reject checks that r may be discarded. Only RECEIVED and FINALIZED transfers can be rejected.
func Reject(r Record) error {
	switch r.Status {
	case shared.TransferStatusReceived, shared.TransferStatusFinalized:
		return nil
	default:
		return &InvalidTransitionError{ID: r.ID, From: r.Status, To: shared.TransferStatusRejected}
	}
}

func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
