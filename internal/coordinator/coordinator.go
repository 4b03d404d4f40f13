// Package coordinator sequences the transfer lifecycle for one wallet session.
// It holds the ephemeral current transfer and delegates the durable queues to
// the reconciliation store.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/config"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/audit"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/nfc"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/wallet"
	"github.com/google/uuid"
)

// createKey reserves the empty current slot while a transfer is being built
const createKey = "\x00create"

// Session is the authorized wallet account
type Session struct {
	Account   string    `json:"account"`
	ExpiresAt time.Time `json:"expires_at"`
	token     string
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithAudit journals every lifecycle action
func WithAudit(repo audit.Repository) Option {
	return func(c *Coordinator) { c.audit = repo }
}

// WithEvents publishes queue and broadcast events
func WithEvents(pub EventPublisher) Option {
	return func(c *Coordinator) { c.events = pub }
}

// WithDeadLetters keeps discarded inbound tags
func WithDeadLetters(pub DeadLetterPublisher) Option {
	return func(c *Coordinator) { c.deadLetters = pub }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

type Coordinator struct {
	ledger      LedgerClient
	auth        Authorizer
	protocol    Protocol
	store       Store
	audit       audit.Repository
	events      EventPublisher
	deadLetters DeadLetterPublisher
	logger      *slog.Logger
	now         func() time.Time

	feeEstimate uint64
	maxAmount   uint64

	mu        sync.Mutex
	session   *Session
	current   *transfer.Record
	draft     *transfer.Record // CREATED copy kept while current is SIGNED, for re-signing
	receiving bool
	lastTag   error
	inflight  map[string]struct{}
}

func NewCoordinator(cfg *config.TransferConfig, ledger LedgerClient, auth Authorizer, protocol Protocol, store Store, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		ledger:      ledger,
		auth:        auth,
		protocol:    protocol,
		store:       store,
		audit:       audit.NopRepository{},
		events:      nopPublisher{},
		deadLetters: nopPublisher{},
		logger:      logger,
		now:         time.Now,
		feeEstimate: cfg.FeeEstimate,
		maxAmount:   cfg.MaxAmount,
		inflight:    make(map[string]struct{}),
	}
	if c.maxAmount == 0 || c.maxAmount > transfer.MaxAmount {
		c.maxAmount = transfer.MaxAmount
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login authorizes identity with the wallet and opens a session on its first account
func (c *Coordinator) Login(ctx context.Context, identity string) (Session, error) {
	auth, err := c.auth.Authorize(ctx, identity)
	if err != nil {
		return Session{}, &AuthorizationError{Op: "login", Err: err}
	}
	if len(auth.Accounts) == 0 {
		return Session{}, &AuthorizationError{Op: "login", Err: errors.New("wallet returned no accounts")}
	}

	session := &Session{Account: auth.Accounts[0], ExpiresAt: auth.ExpiresAt, token: auth.AuthToken}

	c.mu.Lock()
	previous := c.session
	c.session = session
	c.mu.Unlock()

	if previous != nil && previous.token != session.token {
		_ = c.auth.Deauthorize(ctx, previous.token)
	}

	c.logger.Info("Wallet session opened", "account", session.Account)
	return *session, nil
}

// Logout releases the proximity link and clears the session and current
// transfer. The durable queues are untouched.
func (c *Coordinator) Logout(ctx context.Context) error {
	stopErr := c.protocol.Stop()

	c.mu.Lock()
	session := c.session
	c.session = nil
	c.current = nil
	c.draft = nil
	c.receiving = false
	c.lastTag = nil
	c.mu.Unlock()

	var errs []error
	if stopErr != nil {
		errs = append(errs, stopErr)
	}
	if session != nil {
		if err := c.auth.Deauthorize(ctx, session.token); err != nil && !errors.Is(err, wallet.ErrAuthorization) {
			errs = append(errs, fmt.Errorf("failed to deauthorize: %w", err))
		}
		c.logger.Info("Wallet session closed", "account", session.Account)
	}
	return errors.Join(errs...)
}

// Session returns the open session
func (c *Coordinator) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Current returns a copy of the transfer in progress
func (c *Coordinator) Current() (transfer.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return transfer.Record{}, false
	}
	return c.current.Clone(), true
}

// ClearCurrent drops the transfer in progress. Queued records are not affected.
func (c *Coordinator) ClearCurrent() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		if _, busy := c.inflight[c.current.ID]; busy {
			return ErrOperationInProgress
		}
		c.logger.Info("Cleared current transfer", "transfer_id", c.current.ID, "status", c.current.Status)
	}
	c.current = nil
	c.draft = nil
	return nil
}

func (c *Coordinator) Pending() []transfer.Record {
	return c.store.Pending()
}

func (c *Coordinator) Completed() []transfer.Record {
	return c.store.Completed()
}

// Capability queries the proximity radio
func (c *Coordinator) Capability(ctx context.Context) (nfc.Capability, error) {
	return c.protocol.CheckCapability(ctx)
}

func (c *Coordinator) PromptEnable(ctx context.Context) error {
	return c.protocol.PromptEnable(ctx)
}

// Balance returns the ledger balance of the session account in lamports
func (c *Coordinator) Balance(ctx context.Context) (uint64, error) {
	session, ok := c.Session()
	if !ok {
		return 0, ErrNotLoggedIn
	}
	return c.ledger.GetBalance(ctx, session.Account)
}

// LedgerHistory returns the settled transactions of the session account, newest first
func (c *Coordinator) LedgerHistory(ctx context.Context, limit int) ([]ledger.Activity, error) {
	session, ok := c.Session()
	if !ok {
		return nil, ErrNotLoggedIn
	}
	return c.ledger.History(ctx, session.Account, limit)
}

// acquire takes the in-flight token for key
func (c *Coordinator) acquire(key string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return nil, ErrOperationInProgress
	}
	c.inflight[key] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}, nil
}

// currentFor returns the session and the current transfer, checking that the
// transfer is in one of the given statuses
func (c *Coordinator) currentFor(statuses ...shared.TransferStatus) (Session, transfer.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, transfer.Record{}, ErrNotLoggedIn
	}
	if c.current == nil {
		return Session{}, transfer.Record{}, ErrNoCurrentTransfer
	}
	for _, s := range statuses {
		if c.current.Status == s {
			return *c.session, c.current.Clone(), nil
		}
	}
	return Session{}, transfer.Record{}, &transfer.InvalidTransitionError{ID: c.current.ID, From: c.current.Status, To: statuses[0]}
}

func (c *Coordinator) record(ctx context.Context, r transfer.Record, action shared.AuditAction, detail string) {
	entry := audit.NewEntry(r, action, detail)
	entry.OccurredAt = c.now().UTC()
	if err := c.audit.Append(ctx, entry); err != nil {
		c.logger.Warn("Failed to journal transfer action", "transfer_id", r.ID, "action", action, "error", err)
	}
}

func (c *Coordinator) publish(ctx context.Context, r transfer.Record, eventType shared.EventType, reason string) {
	event := shared.TransferEvent{
		EventID:         uuid.NewString(),
		Type:            eventType,
		TransferID:      r.ID,
		Direction:       r.Direction,
		Status:          r.Status,
		Amount:          r.Amount,
		Fee:             r.Fee,
		From:            r.From(),
		To:              r.To(),
		LedgerSignature: r.LedgerSignature,
		Reason:          reason,
		OccurredAt:      c.now().UTC(),
	}
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Warn("Failed to publish transfer event", "transfer_id", r.ID, "type", eventType, "error", err)
	}
}
