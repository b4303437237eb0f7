package handlers

import (
	"net/http"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/engine"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/services"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	engine  *engine.Engine
	payouts *services.PayoutService
}

func NewSessionHandler(e *engine.Engine, payouts *services.PayoutService) *SessionHandler {
	return &SessionHandler{engine: e, payouts: payouts}
}

// ListSessions returns the live session table, read-only.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.engine.Sessions()})
}

// ListPendingPayouts exposes unsettled outcomes for operator inspection.
func (h *SessionHandler) ListPendingPayouts(c *gin.Context) {
	payouts, err := h.payouts.ListPending()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load pending payouts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": payouts})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
