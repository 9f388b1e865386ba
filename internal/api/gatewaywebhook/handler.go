// Package gatewaywebhook receives billing callbacks from the payment gateway.
package gatewaywebhook

import (
	"context"
	"io"
	"net/http"

	"zona-pedidos/internal/apperr"
	"zona-pedidos/internal/metrics"
	billingsvc "zona-pedidos/internal/service/billing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = int64(65536)

// Ingester persists and processes a raw gateway callback.
type Ingester interface {
	IngestWebhook(ctx context.Context, header http.Header, body []byte) (*billingsvc.IngestResult, error)
}

type Handler struct {
	svc      Ingester
	provider string
}

func NewHandler(svc Ingester, provider string) *Handler {
	return &Handler{svc: svc, provider: provider}
}

// Receive acknowledges every callback it managed to store. Processing
// failures stay in the ingestion queue for replay; only a failure to persist
// answers 500 so the gateway retries.
func (h *Handler) Receive(c *gin.Context) {
	logger := zerolog.Ctx(c.Request.Context())

	body, ok := readBody(c)
	if !ok {
		metrics.WebhookEventsTotal.WithLabelValues(h.provider, "", "rejected").Inc()
		return
	}

	res, err := h.svc.IngestWebhook(c.Request.Context(), c.Request.Header, body)
	if err != nil {
		e, _ := apperr.As(err)
		switch {
		case e != nil && e.Kind == apperr.KindAuth:
			logger.Warn().Str("code", e.Code).Msg("webhook rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": e.Message, "code": e.Code})
		case e != nil && e.Kind == apperr.KindValidation:
			logger.Warn().Err(err).Msg("webhook payload rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": e.Message, "code": e.Code})
		default:
			logger.Error().Err(err).Msg("webhook could not be stored")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook could not be stored", "code": "internal_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"event_id": res.EventID,
		"status":   res.Status,
	})
}

func readBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("error reading webhook body")
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large", "code": "body_too_large"})
		return nil, false
	}
	return payload, true
}
