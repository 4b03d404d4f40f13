// Package proximity drives the short-range exchange of signed transfers on top
// of an nfc.Driver. It owns the link state machine, the exclusive write session
// and the listening subscription.
package proximity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/envelope"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/nfc"
)

// State of the proximity link
type State string

const (
	StateIdle               State = "IDLE"
	StateCheckingCapability State = "CHECKING_CAPABILITY"
	StateUnsupported        State = "UNSUPPORTED"
	StateDisabled           State = "DISABLED"
	StateReady              State = "READY"
	StateSending            State = "SENDING"
	StateListening          State = "LISTENING"
	StateSuccess            State = "SUCCESS"
	StateFailed             State = "FAILED"
)

// Handler receives the outcome of every tag read while listening.
// OnPayload is only called with envelopes that passed semantic validation.
// Errors passed to OnError are *TagError values wrapping the cause.
type Handler struct {
	OnPayload func(env envelope.Envelope)
	OnError   func(err error)
}

// Option configures a Protocol
type Option func(*Protocol)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) { p.now = now }
}

// WithSenderName sets the display name advertised in outgoing envelopes
func WithSenderName(name string) Option {
	return func(p *Protocol) { p.senderName = name }
}

type Protocol struct {
	driver     nfc.Driver
	logger     *slog.Logger
	now        func() time.Time
	senderName string

	mu        sync.Mutex
	state     State
	sending   bool
	session   nfc.Session
	sub       nfc.Subscription
	listenGen uint64
}

func NewProtocol(driver nfc.Driver, logger *slog.Logger, opts ...Option) *Protocol {
	p := &Protocol{
		driver: driver,
		logger: logger,
		now:    time.Now,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current link state
func (p *Protocol) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Listening reports whether a tag subscription is active
func (p *Protocol) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sub != nil
}

// CheckCapability queries the radio. An unsupported or disabled radio yields a
// *CapabilityError carrying the remediation hint.
func (p *Protocol) CheckCapability(ctx context.Context) (nfc.Capability, error) {
	p.setState(StateCheckingCapability)

	capability, err := p.driver.Initialize(ctx)
	if err != nil {
		p.setState(StateFailed)
		return nfc.Capability{}, fmt.Errorf("failed to initialize proximity link: %w", err)
	}

	switch {
	case !capability.Supported:
		p.setState(StateUnsupported)
		return capability, &CapabilityError{State: StateUnsupported, Remediation: RemediationInstall}
	case !capability.Enabled:
		p.setState(StateDisabled)
		return capability, &CapabilityError{State: StateDisabled, Remediation: RemediationEnable}
	}

	p.setState(StateReady)
	return capability, nil
}

// PromptEnable asks the platform to switch the radio on
func (p *Protocol) PromptEnable(ctx context.Context) error {
	if err := p.driver.PromptEnable(ctx); err != nil {
		if errors.Is(err, nfc.ErrNotSupported) {
			p.setState(StateUnsupported)
			return &CapabilityError{State: StateUnsupported, Remediation: RemediationInstall}
		}
		return fmt.Errorf("failed to enable proximity link: %w", err)
	}

	p.mu.Lock()
	if p.state == StateDisabled {
		p.state = StateIdle
	}
	p.mu.Unlock()
	return nil
}

// Send transmits a signed outgoing transfer. An active listening subscription
// is released first. A transport failure leaves the record untouched so the
// send can be retried.
func (p *Protocol) Send(ctx context.Context, r transfer.Record) error {
	if r.Direction != shared.DirectionOutgoing || r.Status != shared.TransferStatusSigned {
		return fmt.Errorf("%w: transfer %s is %s %s", ErrNotSigned, r.ID, r.Direction, r.Status)
	}

	data, err := envelope.EncodeWithSender(r, p.senderName, p.now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.sending {
		p.mu.Unlock()
		return ErrAlreadyActive
	}
	p.sending = true
	sub := p.detachListenerLocked()
	p.mu.Unlock()
	defer p.clearSending()

	if sub != nil {
		p.logger.Info("Releasing listener before send", "transfer_id", r.ID)
		if err := sub.Stop(); err != nil {
			p.logger.Warn("Failed to release listener", "error", err)
		}
	}

	if _, err := p.CheckCapability(ctx); err != nil {
		return err
	}

	session, err := p.driver.RequestSession(ctx)
	if err != nil {
		return p.fail(ctx, "request session", err)
	}

	p.mu.Lock()
	p.session = session
	p.state = StateSending
	p.mu.Unlock()
	defer p.releaseSession(session)

	if err := session.Write(ctx, data); err != nil {
		return p.fail(ctx, "write", err)
	}

	p.setState(StateSuccess)
	p.logger.Info("Transfer transmitted",
		"transfer_id", r.ID,
		"amount", r.Amount,
		"bytes", len(data))
	return nil
}

// Listen subscribes to inbound tags until Stop is called. Decode and
// validation failures are reported through OnError and listening continues.
func (p *Protocol) Listen(ctx context.Context, h Handler) error {
	if h.OnPayload == nil {
		return errors.New("proximity listen requires a payload handler")
	}

	p.mu.Lock()
	if p.sub != nil || p.sending {
		p.mu.Unlock()
		return ErrAlreadyActive
	}
	p.mu.Unlock()

	if _, err := p.CheckCapability(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	p.listenGen++
	gen := p.listenGen
	p.mu.Unlock()

	sub, err := p.driver.Listen(ctx, func(data []byte) {
		p.handleTag(gen, data, h)
	})
	if err != nil {
		return p.fail(ctx, "listen", err)
	}

	p.mu.Lock()
	if gen != p.listenGen || p.sub != nil {
		// stopped or superseded while subscribing
		p.mu.Unlock()
		_ = sub.Stop()
		return ErrAlreadyActive
	}
	p.sub = sub
	p.state = StateListening
	p.mu.Unlock()

	p.logger.Info("Listening for proximity transfers")
	return nil
}

// Stop releases any subscription or session. It is safe to call in any state.
func (p *Protocol) Stop() error {
	p.mu.Lock()
	sub := p.detachListenerLocked()
	session := p.session
	p.session = nil
	switch p.state {
	case StateSuccess, StateFailed, StateUnsupported, StateDisabled:
	default:
		p.state = StateIdle
	}
	p.mu.Unlock()

	var errs []error
	if sub != nil {
		if err := sub.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop listener: %w", err))
		}
	}
	if session != nil {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close session: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Reset stops everything and returns the link to IDLE
func (p *Protocol) Reset() error {
	err := p.Stop()
	p.setState(StateIdle)
	return err
}

func (p *Protocol) handleTag(gen uint64, data []byte, h Handler) {
	p.mu.Lock()
	active := gen == p.listenGen
	p.mu.Unlock()
	if !active {
		return
	}

	env, err := envelope.Decode(data)
	if err == nil {
		err = ValidatePayload(env, p.now())
	}
	if err != nil {
		p.logger.Warn("Discarding inbound tag", "error", err, "bytes", len(data))
		if h.OnError != nil {
			h.OnError(&TagError{Data: data, Err: err})
		}
		return
	}

	p.setState(StateSuccess)
	p.logger.Info("Proximity transfer received", "transfer_id", env.Payload.ID)
	h.OnPayload(env)
}

// ValidatePayload applies the semantic checks to a decoded envelope
func ValidatePayload(env envelope.Envelope, now time.Time) error {
	if env.MessageType != envelope.MessageType {
		return &SemanticValidationError{Field: "messageType", Err: envelope.ErrUnsupportedType}
	}
	if env.Version != envelope.Version {
		return &SemanticValidationError{Field: "version", Err: envelope.ErrUnsupportedVersion}
	}
	if env.Payload.Metadata == nil {
		return &SemanticValidationError{Field: "metadata", Err: errors.New("missing")}
	}
	if _, err := transfer.ApplyReceived(env.Payload.Inbound(), now); err != nil {
		return &SemanticValidationError{Err: err}
	}
	return nil
}

func (p *Protocol) detachListenerLocked() nfc.Subscription {
	sub := p.sub
	p.sub = nil
	p.listenGen++
	return sub
}

func (p *Protocol) releaseSession(session nfc.Session) {
	p.mu.Lock()
	if p.session == session {
		p.session = nil
	}
	p.mu.Unlock()

	if err := session.Close(); err != nil {
		p.logger.Warn("Failed to close proximity session", "error", err)
	}
}

func (p *Protocol) clearSending() {
	p.mu.Lock()
	p.sending = false
	p.mu.Unlock()
}

func (p *Protocol) fail(ctx context.Context, op string, err error) error {
	p.setState(StateFailed)
	p.logger.Error("Proximity operation failed", "op", op, "error", err)

	switch {
	case errors.Is(err, nfc.ErrNotSupported):
		p.setState(StateUnsupported)
		return &CapabilityError{State: StateUnsupported, Remediation: RemediationInstall}
	case errors.Is(err, nfc.ErrDisabled):
		p.setState(StateDisabled)
		return &CapabilityError{State: StateDisabled, Remediation: RemediationEnable}
	case errors.Is(err, nfc.ErrSessionExpired):
		return fmt.Errorf("%w: %w", ErrResignRequired, err)
	case ctx.Err() != nil:
		return &TransportError{Reason: ReasonCancelled, Err: err}
	default:
		return &TransportError{Reason: ReasonTransport, Err: err}
	}
}

func (p *Protocol) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}
