package handler

import (
	"log/slog"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/coordinator"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/middleware"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/service"
	"github.com/gin-gonic/gin"
)

// SessionHandler handles HTTP requests for the wallet session
type SessionHandler struct {
	wallet          service.WalletService
	defaultIdentity string
	logger          *slog.Logger
}

// NewSessionHandler creates a new session handler. defaultIdentity is presented
// to the wallet when a login request names none.
func NewSessionHandler(logger *slog.Logger, wallet service.WalletService, defaultIdentity string) *SessionHandler {
	return &SessionHandler{
		wallet:          wallet,
		defaultIdentity: defaultIdentity,
		logger:          logger,
	}
}

// Login authorizes with the wallet and opens a session
func (h *SessionHandler) Login(c *gin.Context) {
	logger := middleware.GetLogger(c, h.logger)

	var req LoginRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}
	if req.Identity == "" {
		req.Identity = h.defaultIdentity
	}

	session, err := h.wallet.Login(c.Request.Context(), req.Identity)
	if err != nil {
		respondServiceError(c, logger, "Failed to log in", err)
		return
	}

	RespondCreated(c, mapSessionToResponse(session))
}

// Logout closes the session. Queued transfers are kept.
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.wallet.Logout(c.Request.Context()); err != nil {
		respondServiceError(c, middleware.GetLogger(c, h.logger), "Failed to log out", err)
		return
	}
	RespondNoContent(c)
}

// Get returns the open session, 401 if none
func (h *SessionHandler) Get(c *gin.Context) {
	session, ok := h.wallet.Session()
	if !ok {
		RespondUnauthorized(c, coordinator.ErrNotLoggedIn.Error())
		return
	}
	RespondOK(c, mapSessionToResponse(session))
}

// Balance returns the ledger balance of the session account
func (h *SessionHandler) Balance(c *gin.Context) {
	logger := middleware.GetLogger(c, h.logger)

	session, ok := h.wallet.Session()
	if !ok {
		RespondUnauthorized(c, coordinator.ErrNotLoggedIn.Error())
		return
	}

	lamports, err := h.wallet.Balance(c.Request.Context())
	if err != nil {
		respondServiceError(c, logger, "Failed to read balance", err)
		return
	}

	RespondOK(c, BalanceResponse{
		Account:  session.Account,
		Lamports: lamports,
		SOL:      transfer.FormatAmount(lamports),
	})
}

// LedgerHistory lists the settled ledger transactions of the session account
func (h *SessionHandler) LedgerHistory(c *gin.Context) {
	logger := middleware.GetLogger(c, h.logger)

	var query LedgerHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	if _, ok := h.wallet.Session(); !ok {
		RespondUnauthorized(c, coordinator.ErrNotLoggedIn.Error())
		return
	}

	activity, err := h.wallet.LedgerHistory(c.Request.Context(), query.Limit)
	if err != nil {
		respondServiceError(c, logger, "Failed to read ledger history", err)
		return
	}

	response := make([]LedgerActivityResponse, 0, len(activity))
	for _, a := range activity {
		response = append(response, mapActivityToResponse(a))
	}
	RespondOK(c, response)
}

func mapActivityToResponse(a ledger.Activity) LedgerActivityResponse {
	response := LedgerActivityResponse{
		Signature:     a.Signature,
		Slot:          a.Slot,
		Memo:          a.Memo,
		Failed:        a.Failed,
		DeltaLamports: a.Delta,
		FeeLamports:   a.Fee,
	}
	if a.BlockTime != nil {
		response.BlockTime = a.BlockTime.UTC().Format(time.RFC3339)
	}
	return response
}

func mapSessionToResponse(s coordinator.Session) SessionResponse {
	response := SessionResponse{Account: s.Account}
	if !s.ExpiresAt.IsZero() {
		response.ExpiresAt = s.ExpiresAt.Format(time.RFC3339)
	}
	return response
}
