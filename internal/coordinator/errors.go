package coordinator

import (
	"errors"
	"fmt"
)

var (
	ErrNotLoggedIn           = errors.New("no wallet session")
	ErrCurrentTransferExists = errors.New("a transfer is already in progress")
	ErrNoCurrentTransfer     = errors.New("no transfer in progress")
	ErrOperationInProgress   = errors.New("another operation on this transfer is in progress")
	ErrNotRecipient          = errors.New("transfer is addressed to another account")
)

// AuthorizationError reports that the wallet declined or the session expired.
// The caller must log in again; the action is never retried with the old token.
type AuthorizationError struct {
	Op  string
	Err error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("wallet authorization failed during %s: %v", e.Op, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}
