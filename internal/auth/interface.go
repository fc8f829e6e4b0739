package auth

import "projecthub/internal/domain/models"

// TokenIssuer issues signed, time-bound bearer tokens.
type TokenIssuer interface {
	// IssueToken returns a token whose subject claim is subject
	IssueToken(subject string) (*models.AccessToken, error)
}

// TokenVerifier defines the interface for bearer token verification.
type TokenVerifier interface {
	// VerifyToken validates a token string and returns the parsed claims.
	// Invalid, expired and malformed tokens all return domain.ErrUnauthorized.
	VerifyToken(tokenString string) (*models.AccessClaims, error)
}

// PasswordHasher produces and checks salted one-way password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Compare returns nil only if password matches hash
	Compare(hash, password string) error
}
