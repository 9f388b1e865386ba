package billing

import (
	"net/http"

	"zona-pedidos/internal/api/respond"

	"github.com/gin-gonic/gin"
)

// GetPaymentHistory lists the latest payments of the linked subscription,
// newest first.
func (h *Handler) GetPaymentHistory(c *gin.Context) {
	payments, err := h.svc.ListPayments(c.Request.Context(), c.GetString("tenant_id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
