package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/coordinator"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/proximity"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"NotLoggedIn", coordinator.ErrNotLoggedIn, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"AuthorizationDeclined", &coordinator.AuthorizationError{Op: "sign", Err: errors.New("declined")}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"InsufficientBalance", fmt.Errorf("create: %w", transfer.ErrInsufficientBalance), http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{"InvalidMemo", transfer.ErrInvalidMemo, http.StatusBadRequest, "BAD_REQUEST"},
		{"InvalidPayload", proximity.ErrInvalidPayload, http.StatusBadRequest, "BAD_REQUEST"},
		{"NoCurrent", coordinator.ErrNoCurrentTransfer, http.StatusNotFound, "NOT_FOUND"},
		{"PendingNotFound", reconciliation.NotFoundError{ID: "tx-1"}, http.StatusNotFound, "NOT_FOUND"},
		{"ResignRequired", proximity.ErrResignRequired, http.StatusConflict, "RESIGN_REQUIRED"},
		{"CurrentExists", coordinator.ErrCurrentTransferExists, http.StatusConflict, "CONFLICT"},
		{"Busy", coordinator.ErrOperationInProgress, http.StatusConflict, "CONFLICT"},
		{"Duplicate", reconciliation.ErrDuplicateTransfer, http.StatusConflict, "CONFLICT"},
		{"AlreadyActive", proximity.ErrAlreadyActive, http.StatusConflict, "CONFLICT"},
		{"Unsupported", &proximity.CapabilityError{State: proximity.StateUnsupported}, http.StatusServiceUnavailable, "PROXIMITY_UNSUPPORTED"},
		{"Transport", &proximity.TransportError{Reason: "tag lost"}, http.StatusBadGateway, "PROXIMITY_TRANSPORT"},
		{"BroadcastTimeout", &reconciliation.BroadcastError{ID: "tx-1", Kind: reconciliation.BroadcastTimeout, Err: errors.New("deadline")}, http.StatusBadGateway, "BROADCAST_TIMEOUT"},
		{"Offline", reconciliation.ErrOffline, http.StatusServiceUnavailable, "LEDGER_OFFLINE"},
		{"Unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter()
			router.GET("/", func(c *gin.Context) {
				respondServiceError(c, testLogger(), "Failed", tt.err)
			})

			rr, resp := serve(t, router, http.MethodGet, "/", nil)
			assert.Equal(t, tt.wantStatus, rr.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}
