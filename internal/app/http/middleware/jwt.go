package middleware

import (
	"context"
	"errors"
	"strings"

	"zona-pedidos/internal/api/respond"
	"zona-pedidos/internal/apperr"
	"zona-pedidos/internal/infra/identity"
	"zona-pedidos/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Context keys set by AuthMiddleware.
const (
	KeyUserID   = "user_id"
	KeyEmail    = "email"
	KeyTenantID = "tenant_id"
)

// TenantLookup resolves the tenant a user belongs to.
type TenantLookup interface {
	TenantIDForUser(ctx context.Context, userID string) (string, error)
}

// AuthMiddleware verifies the bearer token and resolves the caller's tenant.
func AuthMiddleware(verifier identity.Verifier, tenants TenantLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}

		id, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if _, isApp := apperr.As(err); isApp {
				respond.Error(c, err)
				return
			}
			respond.Error(c, apperr.Auth("invalid_token", "Invalid or expired token"))
			return
		}

		tenantID, err := tenants.TenantIDForUser(c.Request.Context(), id.UserID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && tenantID == "") {
			respond.Error(c, apperr.New(apperr.KindTenantLink, "tenant_not_linked", "User is not linked to a tenant"))
			return
		}
		if err != nil {
			respond.Error(c, apperr.Internal("Failed to resolve tenant", err))
			return
		}

		c.Set(KeyUserID, id.UserID)
		c.Set(KeyEmail, id.Email)
		c.Set(KeyTenantID, tenantID)

		logger := zerolog.Ctx(c.Request.Context()).With().Str("tenant_id", tenantID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		respond.Error(c, apperr.Auth("missing_token", "Authorization header missing"))
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == authHeader || token == "" {
		respond.Error(c, apperr.Auth("malformed_token", "Bearer token malformed"))
		return "", false
	}
	return token, true
}
