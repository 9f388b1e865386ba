package billing

import (
	"net/http"

	"zona-pedidos/internal/api/respond"

	"github.com/gin-gonic/gin"
)

type changePlanInput struct {
	Cycle string `json:"cycle" binding:"required"`
}

func (h *Handler) ChangePlan(c *gin.Context) {
	var input changePlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "code": "invalid_input"})
		return
	}

	res, err := h.svc.ChangePlan(c.Request.Context(), c.GetString("tenant_id"), input.Cycle)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
