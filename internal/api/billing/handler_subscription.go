package billing

import (
	"net/http"

	"zona-pedidos/internal/api/respond"
	billingsvc "zona-pedidos/internal/service/billing"

	"github.com/gin-gonic/gin"
)

type createSubscriptionInput struct {
	Cycle     string `json:"cycle"`
	PromoCode string `json:"promo_code"`
	TaxID     string `json:"tax_id"`
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	var input createSubscriptionInput
	if !bindOptionalJSON(c, &input) {
		return
	}

	res, err := h.svc.CreateSubscription(c.Request.Context(), c.GetString("tenant_id"), billingsvc.CreateSubscriptionRequest{
		Cycle:     input.Cycle,
		PromoCode: input.PromoCode,
		TaxID:     input.TaxID,
		Email:     c.GetString("email"),
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	status := http.StatusCreated
	if res.Mode != billingsvc.ModePayment {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// bindOptionalJSON binds the body when there is one.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "code": "invalid_input"})
		return false
	}
	return true
}
