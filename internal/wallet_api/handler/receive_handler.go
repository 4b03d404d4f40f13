package handler

import (
	"log/slog"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/middleware"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/service"
	"github.com/gin-gonic/gin"
)

// ReceiveHandler handles HTTP requests for the receiver side
type ReceiveHandler struct {
	wallet service.WalletService
	logger *slog.Logger
}

// NewReceiveHandler creates a new receive handler
func NewReceiveHandler(logger *slog.Logger, wallet service.WalletService) *ReceiveHandler {
	return &ReceiveHandler{
		wallet: wallet,
		logger: logger,
	}
}

// Start begins listening for one inbound transfer
func (h *ReceiveHandler) Start(c *gin.Context) {
	if err := h.wallet.StartReceiving(c.Request.Context()); err != nil {
		respondServiceError(c, middleware.GetLogger(c, h.logger), "Failed to start receiving", err)
		return
	}
	RespondAccepted(c, mapReceiveStatus(h.wallet))
}

// Stop cancels listening
func (h *ReceiveHandler) Stop(c *gin.Context) {
	if err := h.wallet.StopReceiving(); err != nil {
		respondServiceError(c, middleware.GetLogger(c, h.logger), "Failed to stop receiving", err)
		return
	}
	RespondNoContent(c)
}

// Status reports whether the node is listening and the last refused tag
func (h *ReceiveHandler) Status(c *gin.Context) {
	RespondOK(c, mapReceiveStatus(h.wallet))
}

// Finalize accepts the received transfer and queues it for broadcast
func (h *ReceiveHandler) Finalize(c *gin.Context) {
	r, err := h.wallet.FinalizeCurrent(c.Request.Context())
	if err != nil {
		respondServiceError(c, middleware.GetLogger(c, h.logger), "Failed to finalize transfer", err)
		return
	}
	RespondOK(c, mapTransferToResponse(r))
}

// Reject discards the received transfer
func (h *ReceiveHandler) Reject(c *gin.Context) {
	logger := middleware.GetLogger(c, h.logger)

	var req RejectTransferRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	if err := h.wallet.RejectCurrent(c.Request.Context(), req.Reason); err != nil {
		respondServiceError(c, logger, "Failed to reject transfer", err)
		return
	}
	RespondNoContent(c)
}

func mapReceiveStatus(wallet service.WalletService) ReceiveStatusResponse {
	status := wallet.ReceiveStatus()
	response := ReceiveStatusResponse{Listening: status.Listening}
	if status.LastError != nil {
		response.LastError = status.LastError.Error()
	}
	return response
}
