package wallet_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/handler"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/middleware"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	session  *handler.SessionHandler
	transfer *handler.TransferHandler
	receive  *handler.ReceiveHandler
	queue    *handler.QueueHandler
	device   *handler.DeviceHandler
}

// setupRouter configures API routes and middleware for the wallet node
func setupRouter(logger *slog.Logger, r *gin.Engine, h handlers) {
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	v1 := r.Group("/api/v1")
	{
		session := v1.Group("/session")
		{
			session.POST("", h.session.Login)
			session.GET("", h.session.Get)
			session.DELETE("", h.session.Logout)
		}
		v1.GET("/balance", h.session.Balance)
		v1.GET("/ledger/history", h.session.LedgerHistory)

		// The single transfer in progress, sender or receiver side
		transfers := v1.Group("/transfers")
		{
			transfers.POST("", h.transfer.Create)

			transfers.GET("/current", h.transfer.Current)
			transfers.DELETE("/current", h.transfer.ClearCurrent)
			transfers.POST("/current/sign", h.transfer.Sign)
			transfers.POST("/current/send", h.transfer.Send)
			transfers.POST("/current/finalize", h.receive.Finalize)
			transfers.POST("/current/reject", h.receive.Reject)

			transfers.POST("/receive", h.receive.Start)
			transfers.GET("/receive", h.receive.Status)
			transfers.DELETE("/receive", h.receive.Stop)

			transfers.GET("/:id", h.transfer.GetByID)
			transfers.GET("/:id/audit", h.transfer.GetAuditTrail)
		}

		queues := v1.Group("/queues")
		{
			queues.GET("/pending", h.queue.Pending)
			queues.GET("/completed", h.queue.Completed)
			queues.POST("/pending/:id/broadcast", h.queue.Broadcast)
			queues.POST("/broadcast", h.queue.BroadcastAll)
		}

		device := v1.Group("/device")
		{
			device.GET("/capability", h.device.Capability)
			device.POST("/enable", h.device.Enable)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
