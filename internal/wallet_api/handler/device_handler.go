package handler

import (
	"errors"
	"log/slog"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/proximity"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/middleware"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/service"
	"github.com/gin-gonic/gin"
)

// DeviceHandler handles HTTP requests about the proximity radio
type DeviceHandler struct {
	wallet service.WalletService
	logger *slog.Logger
}

func NewDeviceHandler(logger *slog.Logger, wallet service.WalletService) *DeviceHandler {
	return &DeviceHandler{
		wallet: wallet,
		logger: logger,
	}
}

// Capability reports whether the radio is supported and enabled. A missing or
// disabled radio is a normal answer, not an error.
func (h *DeviceHandler) Capability(c *gin.Context) {
	capability, err := h.wallet.Capability(c.Request.Context())
	var capabilityErr *proximity.CapabilityError
	if err != nil && !errors.As(err, &capabilityErr) {
		respondServiceError(c, middleware.GetLogger(c, h.logger), "Failed to check proximity capability", err)
		return
	}

	RespondOK(c, CapabilityResponse{Supported: capability.Supported, Enabled: capability.Enabled})
}

// Enable prompts the platform to switch the radio on
func (h *DeviceHandler) Enable(c *gin.Context) {
	if err := h.wallet.PromptEnable(c.Request.Context()); err != nil {
		respondServiceError(c, middleware.GetLogger(c, h.logger), "Failed to enable proximity link", err)
		return
	}
	RespondNoContent(c)
}
