package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/coordinator"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/proximity"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
	"github.com/gin-gonic/gin"
)

// respondServiceError maps a lifecycle error to its HTTP status. Only
// unexpected errors are logged at error level.
func respondServiceError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	var (
		authErr       *coordinator.AuthorizationError
		capabilityErr *proximity.CapabilityError
		transportErr  *proximity.TransportError
		broadcastErr  *reconciliation.BroadcastError
	)

	switch {
	case errors.Is(err, coordinator.ErrNotLoggedIn), errors.As(err, &authErr):
		RespondUnauthorized(c, err.Error())
	case errors.Is(err, transfer.ErrInsufficientBalance):
		RespondUnprocessable(c, "INSUFFICIENT_BALANCE", err.Error())
	case transfer.IsValidationError(err), errors.Is(err, proximity.ErrInvalidPayload):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, coordinator.ErrNoCurrentTransfer), errors.Is(err, reconciliation.NotFoundError{}):
		RespondNotFound(c, err.Error())
	case errors.Is(err, proximity.ErrResignRequired):
		RespondWithError(c, http.StatusConflict, "RESIGN_REQUIRED", err.Error())
	case errors.Is(err, coordinator.ErrCurrentTransferExists),
		errors.Is(err, coordinator.ErrOperationInProgress),
		errors.Is(err, transfer.ErrInvalidTransition),
		errors.Is(err, reconciliation.ErrDuplicateTransfer),
		errors.Is(err, reconciliation.ErrInvalidState),
		errors.Is(err, proximity.ErrAlreadyActive):
		RespondConflict(c, err.Error())
	case errors.As(err, &capabilityErr):
		RespondServiceUnavailable(c, "PROXIMITY_"+string(capabilityErr.State), capabilityErr.Remediation)
	case errors.As(err, &transportErr):
		RespondBadGateway(c, "PROXIMITY_TRANSPORT", err.Error())
	case errors.As(err, &broadcastErr):
		RespondBadGateway(c, "BROADCAST_"+string(broadcastErr.Kind), err.Error())
	case errors.Is(err, reconciliation.ErrOffline):
		RespondServiceUnavailable(c, "LEDGER_OFFLINE", err.Error())
	default:
		logger.Error(msg, "error", err)
		RespondInternalError(c)
		return
	}

	logger.Warn(msg, "error", err)
}
