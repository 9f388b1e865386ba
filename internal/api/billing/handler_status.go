package billing

import (
	"net/http"

	"zona-pedidos/internal/api/respond"

	"github.com/gin-gonic/gin"
)

// GetStatus returns the tenant's effective billing state.
func (h *Handler) GetStatus(c *gin.Context) {
	report, err := h.svc.Status(c.Request.Context(), c.GetString("tenant_id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetAccess answers whether the tenant may use the app right now.
func (h *Handler) GetAccess(c *gin.Context) {
	decision, err := h.svc.Access(c.Request.Context(), c.GetString("tenant_id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// GetSession is served behind the billing gate, so reaching it means access is allowed.
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":   c.GetString("user_id"),
		"email":     c.GetString("email"),
		"tenant_id": c.GetString("tenant_id"),
		"access":    c.MustGet("access"),
	})
}
