package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"projecthub/internal/domain"
	"projecthub/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the OAuth2 token type returned with issued tokens.
const TokenType = "bearer"

// HMACTokenService issues and verifies HS256 tokens signed with a
// server-held secret. There is no refresh or revocation: expiry is the only
// way a token stops being valid.
type HMACTokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an HMACTokenService.
type Option func(*HMACTokenService)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *HMACTokenService) { s.now = now }
}

// NewHMACTokenService creates a token service. ttl is the fixed lifetime of
// every issued token.
func NewHMACTokenService(secret, issuer string, ttl time.Duration, logger *slog.Logger, opts ...Option) (*HMACTokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret cannot be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token TTL must be positive")
	}

	s := &HMACTokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// IssueToken signs a token for subject that expires ttl from now.
func (s *HMACTokenService) IssueToken(subject string) (*models.AccessToken, error) {
	if subject == "" {
		return nil, errors.New("token subject cannot be empty")
	}

	// NumericDate has second precision; truncating keeps ExpiresAt equal to exp
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)

	claims := models.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &models.AccessToken{
		AccessToken: signed,
		TokenType:   TokenType,
		ExpiresAt:   expiresAt,
	}, nil
}

// VerifyToken validates signature, algorithm and expiry and extracts the claims.
func (s *HMACTokenService) VerifyToken(tokenString string) (*models.AccessClaims, error) {
	parserOpts := []jwt.ParserOption{
		// Prevent algorithm confusion attacks
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.AccessClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOpts...)
	if err != nil {
		s.logger.Debug("token rejected", "error", err.Error())
		return nil, domain.ErrUnauthorized
	}

	if !token.Valid {
		s.logger.Debug("token is invalid after parsing")
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok {
		s.logger.Error("failed to extract claims from token")
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		s.logger.Debug("token missing subject claim")
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}
