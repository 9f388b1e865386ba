// Package respond writes error responses in the API's JSON shape:
// {"error": message, "code": code, "details": detail}.
package respond

import (
	"net/http"

	"zona-pedidos/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Error aborts the request with the status mapped from err's kind. Internal
// errors are logged and never expose their detail.
func Error(c *gin.Context, err error) {
	ErrorWithStatus(c, 0, err)
}

// ErrorWithStatus is Error with an explicit status; 0 keeps the kind's default.
func ErrorWithStatus(c *gin.Context, status int, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal("Internal server error", err)
	}
	if status == 0 {
		status = apperr.HTTPStatus(e.Kind)
	}

	body := gin.H{"error": e.Message, "code": e.Code}
	if e.Kind == apperr.KindInternal {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("internal error")
	} else if e.Detail != "" {
		body["details"] = e.Detail
	}
	if status >= http.StatusInternalServerError && e.Kind != apperr.KindInternal {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	c.AbortWithStatusJSON(status, body)
}
