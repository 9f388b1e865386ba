package billing

import (
	"net/http"

	"zona-pedidos/internal/api/respond"

	"github.com/gin-gonic/gin"
)

// StartTrial grants the one-shot trial. A refusal is not an error: the
// response says started=false with the reason.
func (h *Handler) StartTrial(c *gin.Context) {
	res, err := h.svc.StartTrial(c.Request.Context(), c.GetString("tenant_id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
