package middleware

import (
	"zona-pedidos/config"
	"zona-pedidos/internal/api/respond"
	"zona-pedidos/internal/apperr"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// RequireOperator guards maintenance routes with a shared token whose bcrypt
// hash is configured in OPERATOR_TOKEN_HASH.
func RequireOperator(tokenHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenHash == "" {
			respond.Error(c, apperr.ConfigMissing(config.KeyOperatorTokenHash))
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
			respond.Error(c, apperr.Auth("invalid_operator_token", "Access denied"))
			return
		}

		c.Next()
	}
}
