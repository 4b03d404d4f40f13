package handler

import (
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/audit"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
)

// LoginRequest represents a request to open a wallet session. The body is
// optional; the configured wallet identity is used when none is given.
type LoginRequest struct {
	Identity string `json:"identity" binding:"max=128"`
}

// SessionResponse represents the open wallet session
type SessionResponse struct {
	Account   string `json:"account"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// BalanceResponse represents the ledger balance of the session account
type BalanceResponse struct {
	Account  string `json:"account"`
	Lamports uint64 `json:"lamports"`
	SOL      string `json:"sol"`
}

// LedgerHistoryQuery bounds the ledger history listing
type LedgerHistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// LedgerActivityResponse represents one settled ledger transaction of the session account
type LedgerActivityResponse struct {
	Signature     string `json:"signature"`
	Slot          uint64 `json:"slot"`
	BlockTime     string `json:"block_time,omitempty"`
	Memo          string `json:"memo,omitempty"`
	Failed        bool   `json:"failed"`
	DeltaLamports int64  `json:"delta_lamports"`
	FeeLamports   uint64 `json:"fee_lamports"`
}

// CreateTransferRequest represents a request to create an outgoing transfer.
// Amount is a decimal SOL string with at most 9 fractional digits.
type CreateTransferRequest struct {
	RecipientAddress string `json:"recipient_address" binding:"required"`
	RecipientName    string `json:"recipient_name" binding:"max=64"`
	Amount           string `json:"amount" binding:"required"`
	Memo             string `json:"memo"`
}

// RejectTransferRequest represents a request to discard a received transfer
type RejectTransferRequest struct {
	Reason string `json:"reason" binding:"max=200"`
}

// TransferResponse represents a transfer in API responses
type TransferResponse struct {
	ID                  string `json:"id"`
	Direction           string `json:"direction"`
	Status              string `json:"status"`
	Account             string `json:"account"`
	CounterpartyAddress string `json:"counterparty_address"`
	CounterpartyName    string `json:"counterparty_name,omitempty"`
	Amount              string `json:"amount"`
	AmountLamports      uint64 `json:"amount_lamports"`
	FeeLamports         uint64 `json:"fee_lamports"`
	Memo                string `json:"memo,omitempty"`
	LedgerSignature     string `json:"ledger_signature,omitempty"`
	CreatedAt           string `json:"created_at"`
	SignedAt            string `json:"signed_at,omitempty"`
	ReceivedAt          string `json:"received_at,omitempty"`
	FinalizedAt         string `json:"finalized_at,omitempty"`
	BroadcastedAt       string `json:"broadcasted_at,omitempty"`
}

// TransferListResponse represents a list of transfers in API responses
type TransferListResponse struct {
	Transfers []TransferResponse `json:"transfers"`
}

// ReceiveStatusResponse reports the receive attempt
type ReceiveStatusResponse struct {
	Listening bool   `json:"listening"`
	LastError string `json:"last_error,omitempty"`
}

// BroadcastResponse represents a confirmed broadcast
type BroadcastResponse struct {
	TransferID      string `json:"transfer_id"`
	LedgerSignature string `json:"ledger_signature"`
}

// BroadcastFailure is one failed record of a batch broadcast
type BroadcastFailure struct {
	TransferID string `json:"transfer_id"`
	Reason     string `json:"reason"`
}

// BroadcastSummaryResponse represents the outcome of a batch broadcast
type BroadcastSummaryResponse struct {
	Succeeded []string           `json:"succeeded"`
	Failed    []BroadcastFailure `json:"failed"`
}

// CapabilityResponse reports the proximity radio
type CapabilityResponse struct {
	Supported bool `json:"supported"`
	Enabled   bool `json:"enabled"`
}

// AuditEntryResponse represents one journaled action
type AuditEntryResponse struct {
	ID              int64  `json:"id"`
	Action          string `json:"action"`
	Status          string `json:"status"`
	Direction       string `json:"direction"`
	AmountLamports  uint64 `json:"amount_lamports"`
	Counterparty    string `json:"counterparty"`
	LedgerSignature string `json:"ledger_signature,omitempty"`
	Detail          string `json:"detail,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// mapTransferToResponse maps a transfer record to its response DTO.
// Payload bytes are never exposed.
func mapTransferToResponse(r transfer.Record) TransferResponse {
	response := TransferResponse{
		ID:                  r.ID,
		Direction:           string(r.Direction),
		Status:              string(r.Status),
		Account:             r.Account,
		CounterpartyAddress: r.Counterparty.Address,
		CounterpartyName:    r.Counterparty.DisplayName,
		Amount:              transfer.FormatAmount(r.Amount),
		AmountLamports:      r.Amount,
		FeeLamports:         r.Fee,
		Memo:                r.Memo,
		LedgerSignature:     r.LedgerSignature,
		CreatedAt:           r.Timestamps.Created.Format(time.RFC3339),
		SignedAt:            formatOptional(r.Timestamps.Signed),
		ReceivedAt:          formatOptional(r.Timestamps.Received),
		FinalizedAt:         formatOptional(r.Timestamps.Finalized),
		BroadcastedAt:       formatOptional(r.Timestamps.Broadcasted),
	}
	return response
}

func mapTransfersToResponse(records []transfer.Record) TransferListResponse {
	transfers := make([]TransferResponse, 0, len(records))
	for _, r := range records {
		transfers = append(transfers, mapTransferToResponse(r))
	}
	return TransferListResponse{Transfers: transfers}
}

func mapAuditEntryToResponse(e *audit.Entry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:              e.ID,
		Action:          string(e.Action),
		Status:          string(e.Status),
		Direction:       string(e.Direction),
		AmountLamports:  e.Amount,
		Counterparty:    e.Counterparty,
		LedgerSignature: e.LedgerSignature,
		Detail:          e.Detail,
		OccurredAt:      e.OccurredAt.Format(time.RFC3339),
	}
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
