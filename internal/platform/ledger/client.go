package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/config"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 1000
)

// Confirmation is the outcome of waiting for a submitted transaction
type Confirmation struct {
	Confirmed bool
	Err       error
}

// Anchor is a recent blockhash binding a transaction to a validity window
type Anchor struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// Activity is one settled transaction touching an account
type Activity struct {
	Signature string
	Slot      uint64
	BlockTime *time.Time
	Memo      string
	Failed    bool
	// Delta is the change of the account's lamports, fee included
	Delta int64
	Fee   uint64
}

type Client struct {
	rpc            *rpc.Client
	commitment     rpc.CommitmentType
	requestTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
}

func NewClient(cfg *config.LedgerConfig, logger *slog.Logger) *Client {
	pollInterval := cfg.ConfirmPollInterval
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	commitment := rpc.CommitmentType(cfg.Commitment)
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Client{
		rpc:            rpc.New(cfg.RPCURL),
		commitment:     commitment,
		requestTimeout: cfg.RequestTimeout,
		pollInterval:   pollInterval,
		logger:         logger,
	}
}

// GetBalance returns the lamport balance of address
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid account %q: %w", address, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.rpc.GetBalance(ctx, account, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", address, err)
	}
	return result.Value, nil
}

// GetRecentAnchor fetches the latest blockhash
func (c *Client) GetRecentAnchor(ctx context.Context) (Anchor, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return Anchor{}, fmt.Errorf("failed to get recent anchor: %w", err)
	}
	if result == nil || result.Value == nil || result.Value.Blockhash == (solana.Hash{}) {
		return Anchor{}, fmt.Errorf("%w: empty blockhash", ErrUnexpectedResult)
	}
	return Anchor{
		Blockhash:            result.Value.Blockhash.String(),
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// BuildUnsignedTransfer builds the transfer against anchor
func (c *Client) BuildUnsignedTransfer(from, to string, lamports uint64, memo, anchor string) ([]byte, error) {
	return BuildUnsignedTransfer(from, to, lamports, memo, anchor)
}

// SubmitRaw sends signed wire bytes and returns the transaction signature. A
// transaction the node has already processed resolves to its own signature.
func (c *Client) SubmitRaw(ctx context.Context, signed []byte) (string, error) {
	tx, err := DecodeTransaction(signed)
	if err != nil {
		return "", err
	}
	if !Signed(tx) {
		return "", fmt.Errorf("%w: transaction is not signed", ErrMalformedTransaction)
	}
	expected := tx.Signatures[0].String()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	signature, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		if rpcErr, ok := asRPCError(err); ok {
			if alreadyProcessed(rpcErr) {
				c.logger.Info("Transaction already processed by ledger", "signature", expected)
				return expected, nil
			}
			return "", fmt.Errorf("%w: %v", ErrRejected, rpcErr)
		}
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}

	if signature.String() != expected {
		c.logger.Warn("Ledger returned an unexpected signature", "expected", expected, "returned", signature.String())
	}
	return signature.String(), nil
}

// Confirm polls the signature status until it reaches the configured
// commitment, fails on-chain, the anchor expires, or ctx ends.
func (c *Client) Confirm(ctx context.Context, signature, anchor string) (Confirmation, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return Confirmation{}, fmt.Errorf("%w: signature %q: %v", ErrMalformedTransaction, signature, err)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.signatureStatus(ctx, sig)
		if err != nil {
			return Confirmation{}, err
		}
		if status != nil {
			if status.Err != nil {
				return Confirmation{Err: fmt.Errorf("%w: %v", ErrRejected, status.Err)}, nil
			}
			if reached(status.ConfirmationStatus, c.commitment) {
				return Confirmation{Confirmed: true}, nil
			}
		} else if anchor != "" {
			valid, err := c.anchorValid(ctx, anchor)
			if err != nil {
				return Confirmation{}, err
			}
			if !valid {
				return Confirmation{Err: ErrAnchorExpired}, nil
			}
		}

		select {
		case <-ctx.Done():
			return Confirmation{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Health reports whether the node is reachable and in sync
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.rpc.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("ledger health check failed: %w", err)
	}
	if result != rpc.HealthOk {
		return fmt.Errorf("ledger health check returned %q", result)
	}
	return nil
}

// History returns the most recent settled transactions touching address,
// newest first, with the lamport change each one caused
func (c *Client) History(ctx context.Context, address string, limit int) ([]Activity, error) {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid account %q: %w", address, err)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	commitment := c.commitment
	if commitment == rpc.CommitmentProcessed {
		commitment = rpc.CommitmentConfirmed
	}

	listCtx, cancel := c.withTimeout(ctx)
	signatures, err := c.rpc.GetSignaturesForAddressWithOpts(listCtx, account, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: commitment,
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures of %s: %w", address, err)
	}

	activity := make([]Activity, 0, len(signatures))
	for _, s := range signatures {
		entry := Activity{
			Signature: s.Signature.String(),
			Slot:      s.Slot,
			Failed:    s.Err != nil,
		}
		if s.Memo != nil {
			entry.Memo = *s.Memo
		}
		if s.BlockTime != nil {
			at := s.BlockTime.Time()
			entry.BlockTime = &at
		}

		if err := c.fillDelta(ctx, account, s.Signature, commitment, &entry); err != nil {
			c.logger.Warn("Failed to load transaction details", "signature", entry.Signature, "error", err)
		}
		activity = append(activity, entry)
	}
	return activity, nil
}

func (c *Client) fillDelta(ctx context.Context, account solana.PublicKey, sig solana.Signature, commitment rpc.CommitmentType, entry *Activity) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	maxVersion := uint64(0)
	result, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return err
	}
	if result == nil || result.Meta == nil || result.Transaction == nil {
		return fmt.Errorf("%w: transaction without metadata", ErrUnexpectedResult)
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return err
	}

	meta := result.Meta
	for i, key := range tx.Message.AccountKeys {
		if !key.Equals(account) {
			continue
		}
		if i >= len(meta.PreBalances) || i >= len(meta.PostBalances) {
			return fmt.Errorf("%w: balance arrays shorter than account keys", ErrUnexpectedResult)
		}
		entry.Delta = int64(meta.PostBalances[i]) - int64(meta.PreBalances[i])
		entry.Fee = meta.Fee
		return nil
	}
	return errors.New("account not among static transaction keys")
}

func (c *Client) signatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to get status of %s: %w", sig, err)
	}
	if result == nil || len(result.Value) != 1 {
		n := 0
		if result != nil {
			n = len(result.Value)
		}
		return nil, fmt.Errorf("%w: %d statuses for one signature", ErrUnexpectedResult, n)
	}
	return result.Value[0], nil
}

func (c *Client) anchorValid(ctx context.Context, anchor string) (bool, error) {
	hash, err := solana.HashFromBase58(anchor)
	if err != nil {
		return false, fmt.Errorf("%w: anchor %q: %v", ErrMalformedTransaction, anchor, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.rpc.IsBlockhashValid(ctx, hash, c.commitment)
	if err != nil {
		return false, fmt.Errorf("failed to check anchor validity: %w", err)
	}
	return result.Value, nil
}
