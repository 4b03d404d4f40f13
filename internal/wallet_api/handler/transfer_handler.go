package handler

import (
	"log/slog"
	"net/http"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/coordinator"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/middleware"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/service"
	"github.com/gin-gonic/gin"
)

// TransferHandler handles HTTP requests for the current transfer and history
type TransferHandler struct {
	wallet  service.WalletService
	history service.HistoryService
	logger  *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, wallet service.WalletService, history service.HistoryService) *TransferHandler {
	return &TransferHandler{
		wallet:  wallet,
		history: history,
		logger:  logger,
	}
}

// Create builds a new outgoing transfer from a decimal SOL amount
func (h *TransferHandler) Create(c *gin.Context) {
	logger := middleware.GetLogger(c, h.logger)

	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := transfer.ParseAmount(req.Amount)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	r, err := h.wallet.CreateTransfer(c.Request.Context(), coordinator.CreateTransferRequest{
		Recipient: transfer.Counterparty{DisplayName: req.RecipientName, Address: req.RecipientAddress},
		Amount:    amount,
		Memo:      req.Memo,
	})
	if err != nil {
		respondServiceError(c, logger, "Failed to create transfer", err)
		return
	}

	RespondCreated(c, mapTransferToResponse(r))
}

// Current returns the transfer in progress
func (h *TransferHandler) Current(c *gin.Context) {
	r, ok := h.wallet.Current()
	if !ok {
		RespondNotFound(c, coordinator.ErrNoCurrentTransfer.Error())
		return
	}
	RespondOK(c, mapTransferToResponse(r))
}

// ClearCurrent drops the transfer in progress
func (h *TransferHandler) ClearCurrent(c *gin.Context) {
	if err := h.wallet.ClearCurrent(); err != nil {
		respondServiceError(c, middleware.GetLogger(c, h.logger), "Failed to clear transfer", err)
		return
	}
	RespondNoContent(c)
}

// Sign asks the wallet to sign the current transfer
func (h *TransferHandler) Sign(c *gin.Context) {
	r, err := h.wallet.SignTransfer(c.Request.Context())
	if err != nil {
		respondServiceError(c, middleware.GetLogger(c, h.logger), "Failed to sign transfer", err)
		return
	}
	RespondOK(c, mapTransferToResponse(r))
}

// Send transmits the signed transfer over the proximity link
func (h *TransferHandler) Send(c *gin.Context) {
	r, err := h.wallet.SendTransfer(c.Request.Context())
	if err != nil {
		respondServiceError(c, middleware.GetLogger(c, h.logger), "Failed to send transfer", err)
		return
	}
	RespondOK(c, mapTransferToResponse(r))
}

// GetByID returns a queued or completed transfer, 404 if unknown
func (h *TransferHandler) GetByID(c *gin.Context) {
	logger := middleware.GetLogger(c, h.logger)
	id := c.Param("id")

	r, err := h.history.GetTransfer(c.Request.Context(), id)
	if err != nil {
		logger.Error("Failed to get transfer", "transfer_id", id, "error", err)
		RespondInternalError(c)
		return
	}
	if r == nil {
		RespondNotFound(c, "Transfer not found")
		return
	}

	RespondOK(c, mapTransferToResponse(*r))
}

// GetAuditTrail returns the paginated journal of a transfer
func (h *TransferHandler) GetAuditTrail(c *gin.Context) {
	logger := middleware.GetLogger(c, h.logger)
	id := c.Param("id")

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		logger.Warn("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.history.GetAuditTrail(c.Request.Context(), id, pagination.Page, pagination.PerPage)
	if err != nil {
		logger.Error("Failed to get audit trail", "transfer_id", id, "error", err)
		RespondInternalError(c)
		return
	}
	if total == 0 {
		RespondNotFound(c, "No audit entries for transfer")
		return
	}

	response := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, mapAuditEntryToResponse(e))
	}

	RespondWithPaginatedData(c, http.StatusOK, response, pagination.Page, pagination.PerPage, int(total))
}
