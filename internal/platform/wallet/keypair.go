// Package wallet authorizes the app against a local signing key and signs
// unsigned ledger transfers on its behalf.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

const privateKeySize = 64

var (
	ErrAuthorization = errors.New("wallet authorization failed")
	ErrWrongSigner   = errors.New("transaction fee payer is not this wallet")
)

// Authorization is the result of a successful Authorize
type Authorization struct {
	Accounts  []string
	AuthToken string
	ExpiresAt time.Time
}

// LoadKeypair reads a solana-keygen file holding the 64-byte secret key as a JSON array of numbers
func LoadKeypair(path string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	if len(key) != privateKeySize {
		return nil, fmt.Errorf("keypair %s: expected %d bytes, got %d", path, privateKeySize, len(key))
	}
	return key, nil
}

// KeypairAuthorizer issues short-lived auth tokens and signs with a single keypair
type KeypairAuthorizer struct {
	key    solana.PrivateKey
	public solana.PublicKey
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	tokens map[string]time.Time
}

func NewKeypairAuthorizer(key solana.PrivateKey, ttl time.Duration, logger *slog.Logger) *KeypairAuthorizer {
	return &KeypairAuthorizer{
		key:    key,
		public: key.PublicKey(),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		tokens: make(map[string]time.Time),
	}
}

// Address returns the base58 account of the key
func (a *KeypairAuthorizer) Address() string {
	return a.public.String()
}

// Authorize grants identity a token for signing
func (a *KeypairAuthorizer) Authorize(ctx context.Context, identity string) (Authorization, error) {
	if err := ctx.Err(); err != nil {
		return Authorization{}, err
	}
	if identity == "" {
		return Authorization{}, fmt.Errorf("%w: identity is required", ErrAuthorization)
	}

	token := uuid.NewString()
	expires := a.now().Add(a.ttl)

	a.mu.Lock()
	a.tokens[token] = expires
	a.mu.Unlock()

	a.logger.Info("Wallet authorized", "identity", identity, "account", a.public.String(), "expires_at", expires)
	return Authorization{
		Accounts:  []string{a.public.String()},
		AuthToken: token,
		ExpiresAt: expires,
	}, nil
}

// Deauthorize revokes token. Unknown tokens are ignored.
func (a *KeypairAuthorizer) Deauthorize(ctx context.Context, token string) error {
	a.mu.Lock()
	delete(a.tokens, token)
	a.mu.Unlock()
	return nil
}

// Sign signs an unsigned transaction whose only required signer is this wallet
func (a *KeypairAuthorizer) Sign(ctx context.Context, unsigned []byte, token string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.checkToken(token); err != nil {
		return nil, err
	}

	tx, err := ledger.DecodeTransaction(unsigned)
	if err != nil {
		return nil, err
	}
	payer, err := ledger.FeePayer(tx)
	if err != nil {
		return nil, err
	}
	if !payer.Equals(a.public) {
		return nil, fmt.Errorf("%w: %s", ErrWrongSigner, payer)
	}

	// Sign appends one signature per required signer
	tx.Signatures = nil
	if _, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(a.public) {
			return &a.key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongSigner, err)
	}
	return tx.MarshalBinary()
}

func (a *KeypairAuthorizer) checkToken(token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	expires, ok := a.tokens[token]
	if !ok {
		return fmt.Errorf("%w: unknown auth token", ErrAuthorization)
	}
	if !a.now().Before(expires) {
		delete(a.tokens, token)
		return fmt.Errorf("%w: auth token expired", ErrAuthorization)
	}
	return nil
}
