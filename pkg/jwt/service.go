package jwt

import (
	"time"
)

// Service is a wrapper for session token operations
type Service struct {
	secretKey string
	expiry    time.Duration
}

// NewService creates a new JWT service. Sessions default to seven days,
// matching the auth cookie lifetime.
func NewService(secretKey string, expiry time.Duration) *Service {
	if secretKey == "" {
		secretKey = "dev-secret"
	}

	if expiry == 0 {
		expiry = 7 * 24 * time.Hour
	}

	return &Service{
		secretKey: secretKey,
		expiry:    expiry,
	}
}

// GenerateToken generates a session token for a user
func (s *Service) GenerateToken(userID uint, email string) (string, error) {
	return generateToken(s.secretKey, userID, email, s.expiry)
}

// ValidateToken validates a session token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return validateToken(s.secretKey, tokenString)
}

// Expiry returns the configured token lifetime, used for cookie max-age
func (s *Service) Expiry() time.Duration {
	return s.expiry
}
