// Package transfer models a single offline transfer and the rules that move it
// through its lifecycle. Every transition is a pure function: it validates the
// source status, returns a new Record and never mutates its argument.
package transfer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/google/uuid"
)

// Counterparty identifies the other side of a transfer
type Counterparty struct {
	DisplayName string `json:"display_name,omitempty"`
	Address     string `json:"address"`
}

// Timestamps records when each lifecycle step happened. Each is set once.
type Timestamps struct {
	Created     time.Time  `json:"created"`
	Signed      *time.Time `json:"signed,omitempty"`
	Received    *time.Time `json:"received,omitempty"`
	Finalized   *time.Time `json:"finalized,omitempty"`
	Broadcasted *time.Time `json:"broadcasted,omitempty"`
}

// Record is the central transfer entity
type Record struct {
	ID              string                `json:"id"`
	Direction       shared.Direction      `json:"direction"`
	Account         string                `json:"account"` // local wallet address
	Counterparty    Counterparty          `json:"counterparty"`
	Amount          uint64                `json:"amount"` // lamports
	Fee             uint64                `json:"fee"`    // lamports, fixed at creation
	Memo            string                `json:"memo,omitempty"`
	Anchor          string                `json:"anchor,omitempty"`
	UnsignedPayload []byte                `json:"unsigned_payload,omitempty"`
	SignedPayload   []byte                `json:"signed_payload,omitempty"`
	Nonce           string                `json:"nonce,omitempty"`
	Status          shared.TransferStatus `json:"status"`
	Timestamps      Timestamps            `json:"timestamps"`
	LedgerSignature string                `json:"ledger_signature,omitempty"`
}

// NewParams holds the inputs of New
type NewParams struct {
	ID              string // generated when empty
	Direction       shared.Direction
	Account         string
	Counterparty    Counterparty
	Amount          uint64
	Fee             uint64
	Memo            string
	Anchor          string
	UnsignedPayload []byte
	CreatedAt       time.Time
}

// Inbound is the validated content of a received envelope
type Inbound struct {
	ID            string
	SignedPayload []byte
	Nonce         string
	Amount        uint64
	Fee           uint64
	From          string
	To            string
	Memo          string
	Anchor        string
	SenderName    string
	SentAt        time.Time
}

// NewID returns a fresh transfer identifier
func NewID() string {
	return uuid.NewString()
}

// NewNonce returns a fresh random token for replay tracking on the proximity link
func NewNonce() string {
	return uuid.NewString()
}

// New creates a transfer in CREATED status
func New(p NewParams) (Record, error) {
	direction := p.Direction
	if direction == "" {
		direction = shared.DirectionOutgoing
	}
	if direction != shared.DirectionOutgoing && direction != shared.DirectionIncoming {
		return Record{}, ErrInvalidDirection
	}
	if err := ValidateAmount(p.Amount); err != nil {
		return Record{}, err
	}
	if err := ValidateMemo(p.Memo); err != nil {
		return Record{}, err
	}
	if err := ValidateAddress(p.Counterparty.Address); err != nil {
		return Record{}, fmt.Errorf("counterparty: %w", err)
	}
	if err := ValidateAddress(p.Account); err != nil {
		return Record{}, fmt.Errorf("account: %w", err)
	}
	if len(p.UnsignedPayload) == 0 {
		return Record{}, ErrMissingPayload
	}

	id := p.ID
	if id == "" {
		id = NewID()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return Record{
		ID:              id,
		Direction:       direction,
		Account:         p.Account,
		Counterparty:    p.Counterparty,
		Amount:          p.Amount,
		Fee:             p.Fee,
		Memo:            p.Memo,
		Anchor:          p.Anchor,
		UnsignedPayload: bytes.Clone(p.UnsignedPayload),
		Status:          shared.TransferStatusCreated,
		Timestamps:      Timestamps{Created: createdAt},
	}, nil
}

// From returns the paying address
func (r Record) From() string {
	if r.Direction == shared.DirectionIncoming {
		return r.Counterparty.Address
	}
	return r.Account
}

// To returns the receiving address
func (r Record) To() string {
	if r.Direction == shared.DirectionIncoming {
		return r.Account
	}
	return r.Counterparty.Address
}

// Clone returns a deep copy of r
func (r Record) Clone() Record {
	c := r
	c.UnsignedPayload = bytes.Clone(r.UnsignedPayload)
	c.SignedPayload = bytes.Clone(r.SignedPayload)
	c.Timestamps.Signed = cloneTime(r.Timestamps.Signed)
	c.Timestamps.Received = cloneTime(r.Timestamps.Received)
	c.Timestamps.Finalized = cloneTime(r.Timestamps.Finalized)
	c.Timestamps.Broadcasted = cloneTime(r.Timestamps.Broadcasted)
	return c
}

// Validate checks the structural invariants of a record, typically one read back from storage
func (r Record) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}
	if !r.Status.Valid() {
		return fmt.Errorf("transfer %s: unknown status %q", r.ID, r.Status)
	}
	if r.Direction != shared.DirectionOutgoing && r.Direction != shared.DirectionIncoming {
		return fmt.Errorf("transfer %s: %w", r.ID, ErrInvalidDirection)
	}
	if r.Status.HasSignedPayload() != (len(r.SignedPayload) > 0) {
		return fmt.Errorf("transfer %s: signed payload presence does not match status %s", r.ID, r.Status)
	}
	if r.Status == shared.TransferStatusCompleted && r.LedgerSignature == "" {
		return fmt.Errorf("transfer %s: completed without ledger signature", r.ID)
	}

	switch r.Status {
	case shared.TransferStatusCreated:
	case shared.TransferStatusSigned:
		if r.Direction != shared.DirectionOutgoing {
			return fmt.Errorf("transfer %s: incoming transfer in status %s", r.ID, r.Status)
		}
	default:
		if r.Direction != shared.DirectionIncoming {
			return fmt.Errorf("transfer %s: outgoing transfer in status %s", r.ID, r.Status)
		}
	}

	prev := r.Timestamps.Created
	for _, ts := range []*time.Time{r.Timestamps.Signed, r.Timestamps.Received, r.Timestamps.Finalized, r.Timestamps.Broadcasted} {
		if ts == nil {
			continue
		}
		if ts.Before(prev) {
			return fmt.Errorf("transfer %s: timestamps are not monotonic", r.ID)
		}
		prev = *ts
	}
	return nil
}

// latest returns the most recent timestamp set on r
func (t Timestamps) latest() time.Time {
	latest := t.Created
	for _, ts := range []*time.Time{t.Signed, t.Received, t.Finalized, t.Broadcasted} {
		if ts != nil && ts.After(latest) {
			latest = *ts
		}
	}
	return latest
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
