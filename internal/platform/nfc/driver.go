// Package nfc defines the contract of the short-range radio driver and ships an
// in-memory loopback implementation that pairs two devices in one process.
package nfc

import (
	"context"
	"errors"
)

// Driver errors
var (
	ErrNotSupported   = errors.New("nfc: not supported on this device")
	ErrDisabled       = errors.New("nfc: disabled")
	ErrSessionBusy    = errors.New("nfc: another session is active")
	ErrSessionExpired = errors.New("nfc: session rejected or expired")
	ErrNoPeer         = errors.New("nfc: no peer in range")
	ErrClosed         = errors.New("nfc: session closed")
)

// Capability reports hardware support and whether the radio is switched on
type Capability struct {
	Supported bool
	Enabled   bool
}

// Session is an exclusive write handle on the radio. Close releases it and is idempotent.
type Session interface {
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Subscription is an active tag listener. Stop releases it and is idempotent.
type Subscription interface {
	Stop() error
}

// Driver is the radio collaborator consumed by the proximity protocol
type Driver interface {
	Initialize(ctx context.Context) (Capability, error)
	RequestSession(ctx context.Context) (Session, error)
	Listen(ctx context.Context, onTag func(data []byte)) (Subscription, error)
	PromptEnable(ctx context.Context) error
}
