package proximity

import (
	"errors"
	"fmt"
)

var (
	ErrNotSigned      = errors.New("only signed outgoing transfers can be sent")
	ErrAlreadyActive  = errors.New("a proximity operation is already active")
	ErrResignRequired = errors.New("proximity session rejected the payload; sign the transfer again")
	ErrInvalidPayload = errors.New("inbound payload failed validation")
)

// Remediation hints surfaced with capability failures
const (
	RemediationInstall = "this device has no NFC hardware; use a device that supports NFC"
	RemediationEnable  = "NFC is turned off; enable it in system settings"
)

// Transport failure reasons
const (
	ReasonTransport = "transport"
	ReasonCancelled = "cancelled"
)

// CapabilityError reports an unsupported or disabled radio together with its fix
type CapabilityError struct {
	State       State
	Remediation string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("proximity link %s: %s", e.State, e.Remediation)
}

// TransportError reports a failed write on the proximity link. The signed
// transfer is still valid and the send can be retried.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("proximity %s failure: %v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SemanticValidationError reports a well-formed envelope with unacceptable content
type SemanticValidationError struct {
	Field string
	Err   error
}

func (e *SemanticValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %v", ErrInvalidPayload, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrInvalidPayload, e.Field, e.Err)
}

func (e *SemanticValidationError) Unwrap() []error {
	return []error{ErrInvalidPayload, e.Err}
}

// TagError carries the raw bytes of an inbound tag that was discarded
type TagError struct {
	Data []byte
	Err  error
}

func (e *TagError) Error() string {
	return e.Err.Error()
}

func (e *TagError) Unwrap() error {
	return e.Err
}
