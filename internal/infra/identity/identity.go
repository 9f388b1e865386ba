// Package identity turns a bearer token into the caller's user id and email.
// Tokens come from the hosted auth provider; either its HS256 JWT secret or
// an OIDC issuer is used to verify them.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zona-pedidos/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Identity struct {
	UserID string
	Email  string
}

type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 tokens signed with the auth provider's shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, rawToken string) (Identity, error) {
	var cl claims
	token, err := jwt.ParseWithClaims(rawToken, &cl, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if strings.TrimSpace(cl.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: cl.Subject, Email: strings.ToLower(cl.Email)}, nil
}

// OIDCVerifier checks RS256 id tokens against the issuer's published keys.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("init oidc provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID, SkipClientIDCheck: clientID == ""}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	var cl struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&cl); err != nil {
		return Identity{}, ErrInvalidToken
	}
	if idToken.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: idToken.Subject, Email: strings.ToLower(cl.Email)}, nil
}

// NewVerifier prefers OIDC when an issuer is configured, otherwise the shared secret.
func NewVerifier(ctx context.Context, cfg *config.Config) (Verifier, error) {
	if cfg.OIDCIssuerURL != "" {
		return NewOIDCVerifier(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID)
	}
	secret, err := cfg.Require(config.KeySupabaseJWTSecret)
	if err != nil {
		return nil, err
	}
	return NewJWTVerifier(secret), nil
}
