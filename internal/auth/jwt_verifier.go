package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"medialib/internal/domain"
	"medialib/internal/domain/models"
)

// Roles that may not act on a library
var rejectedRoles = map[string]bool{"anon": true}

// TokenVerifier implements JWTVerifier with either a shared HS256 secret or
// public keys fetched from a JWKS endpoint.
type TokenVerifier struct {
	keyfunc jwt.Keyfunc
	methods []string
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// NewJWKSVerifier creates a verifier that fetches public keys from jwksURL.
// Keys are cached and refreshed in the background until Close is called.
func NewJWKSVerifier(jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "mode", "jwks", "jwks_url", jwksURL)

	return &TokenVerifier{
		keyfunc: jwks.Keyfunc,
		methods: []string{"RS256", "ES256"},
		cancel:  cancel,
		logger:  logger,
	}, nil
}

// NewHMACVerifier creates a verifier for tokens signed with a shared secret
func NewHMACVerifier(secret string, logger *slog.Logger) (JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}

	key := []byte(secret)
	logger.Info("JWT verifier initialized", "mode", "hmac")

	return &TokenVerifier{
		keyfunc: func(*jwt.Token) (interface{}, error) { return key, nil },
		methods: []string{"HS256"},
		cancel:  func() {},
		logger:  logger,
	}, nil
}

// NewJWTVerifier picks the JWKS verifier when jwksURL is set and the HMAC
// verifier otherwise
func NewJWTVerifier(jwksURL, secret string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL != "" {
		return NewJWKSVerifier(jwksURL, logger)
	}
	return NewHMACVerifier(secret, logger)
}

// VerifyToken validates a token and extracts identity claims.
// Returns domain.ErrUnauthorized if the token is invalid, expired, or has incorrect claims.
func (v *TokenVerifier) VerifyToken(tokenString string) (*models.IdentityClaims, error) {
	// Restricting methods prevents algorithm confusion
	token, err := jwt.ParseWithClaims(tokenString, &models.IdentityClaims{}, v.keyfunc,
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		v.logger.Debug("token rejected", "error", err)
		return nil, domain.ErrUnauthorized
	}
	if !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok {
		v.logger.Error("failed to extract claims from token")
		return nil, domain.ErrUnauthorized
	}

	if claims.GetUserID() == "" {
		v.logger.Debug("token missing user id")
		return nil, domain.ErrUnauthorized
	}

	if rejectedRoles[claims.Role] {
		v.logger.Warn("token has rejected role", "role", claims.Role, "user_id", claims.GetUserID())
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close stops the background key refresh
func (v *TokenVerifier) Close() error {
	v.cancel()
	v.logger.Info("JWT verifier closed")
	return nil
}
