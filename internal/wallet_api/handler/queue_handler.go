package handler

import (
	"log/slog"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/middleware"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/service"
	"github.com/gin-gonic/gin"
)

// QueueHandler handles HTTP requests for the durable queues
type QueueHandler struct {
	wallet service.WalletService
	logger *slog.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(logger *slog.Logger, wallet service.WalletService) *QueueHandler {
	return &QueueHandler{
		wallet: wallet,
		logger: logger,
	}
}

// Pending lists transfers waiting for broadcast, oldest first
func (h *QueueHandler) Pending(c *gin.Context) {
	RespondOK(c, mapTransfersToResponse(h.wallet.Pending()))
}

// Completed lists transfers confirmed on the ledger
func (h *QueueHandler) Completed(c *gin.Context) {
	RespondOK(c, mapTransfersToResponse(h.wallet.Completed()))
}

// Broadcast submits one pending transfer and waits for confirmation
func (h *QueueHandler) Broadcast(c *gin.Context) {
	id := c.Param("id")

	signature, err := h.wallet.Broadcast(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, middleware.GetLogger(c, h.logger).With("transfer_id", id), "Failed to broadcast transfer", err)
		return
	}

	RespondOK(c, BroadcastResponse{TransferID: id, LedgerSignature: signature})
}

// BroadcastAll attempts every pending transfer. Individual failures are
// reported in the summary, not as an error status.
func (h *QueueHandler) BroadcastAll(c *gin.Context) {
	summary, err := h.wallet.BroadcastAll(c.Request.Context())
	if err != nil {
		respondServiceError(c, middleware.GetLogger(c, h.logger), "Batch broadcast interrupted", err)
		return
	}

	response := BroadcastSummaryResponse{
		Succeeded: summary.Succeeded,
		Failed:    make([]BroadcastFailure, 0, len(summary.Failed)),
	}
	if response.Succeeded == nil {
		response.Succeeded = []string{}
	}
	for _, f := range summary.Failed {
		response.Failed = append(response.Failed, BroadcastFailure{TransferID: f.ID, Reason: f.Err.Error()})
	}

	RespondOK(c, response)
}
