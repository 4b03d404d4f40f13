package transfer

import (
	"errors"
	"fmt"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
)

// ErrValidation is matched by every input validation failure in this package
var ErrValidation = errors.New("validation failed")

// Common errors
var (
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be positive and within limits", ErrValidation)
	ErrInvalidMemo         = fmt.Errorf("%w: memo must be at most 100 characters of letters, digits, whitespace and -_.,!?", ErrValidation)
	ErrInvalidAddress      = fmt.Errorf("%w: invalid ledger address", ErrValidation)
	ErrInvalidDirection    = fmt.Errorf("%w: invalid transfer direction", ErrValidation)
	ErrMissingPayload      = fmt.Errorf("%w: transaction payload is required", ErrValidation)
	ErrMissingNonce        = fmt.Errorf("%w: nonce is required", ErrValidation)
	ErrMissingID           = fmt.Errorf("%w: transfer id is required", ErrValidation)
	ErrInsufficientBalance = fmt.Errorf("%w: amount plus fee exceeds balance", ErrValidation)

	ErrInvalidTransition = errors.New("invalid status transition")
)

// InvalidTransitionError reports misuse of the status machine
type InvalidTransitionError struct {
	ID   string
	From shared.TransferStatus
	To   shared.TransferStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for transfer %s: %s -> %s", e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsValidationError reports whether err is caused by bad user input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
