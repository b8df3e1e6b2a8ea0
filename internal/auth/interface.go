package auth

import "medialib/internal/domain/models"

// JWTVerifier defines the interface for bearer token verification.
// The middleware stays agnostic of how keys are obtained.
type JWTVerifier interface {
	// VerifyToken validates a token string and returns the parsed claims.
	// Returns an error if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.IdentityClaims, error)

	// Close releases any resources held by the verifier (e.g., the JWKS refresh goroutine).
	Close() error
}
