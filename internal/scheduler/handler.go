package scheduler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/ingestion"
)

// Trigger is the manual side of the scheduler as seen by HTTP.
type Trigger interface {
	TriggerNow(trigger ingestion.Trigger) (ingestion.Summary, error)
}

type Handler struct {
	trigger Trigger
	logger  *zap.Logger
}

func NewHandler(t Trigger, log *zap.Logger) *Handler {
	return &Handler{trigger: t, logger: log}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/update-prices", h.UpdatePrices)
}

// UpdatePrices runs one ingestion cycle to completion and reports its counts.
func (h *Handler) UpdatePrices(c *gin.Context) {
	h.logger.Info("manual price update requested", zap.String("client_ip", c.ClientIP()))

	s, err := h.trigger.TriggerNow(ingestion.TriggerManual)
	if err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
			return
		}
		h.logger.Error("manual price update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "price update failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "price update completed",
		"data": gin.H{
			"run_id":    s.RunID,
			"status":    s.Status,
			"processed": s.Processed,
			"succeeded": s.Succeeded,
			"failed":    s.Failed,
		},
	})
}
