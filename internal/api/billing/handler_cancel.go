package billing

import (
	"net/http"

	"zona-pedidos/internal/api/respond"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Cancel(c *gin.Context) {
	res, err := h.svc.Cancel(c.Request.Context(), c.GetString("tenant_id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
