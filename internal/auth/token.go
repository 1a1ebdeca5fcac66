package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/david/campaign-radar/internal/logger"
)

const DefaultTokenTTL = 24 * time.Hour

// ResolveSecret returns the configured signing secret, or a random one that
// lives as long as the process when none is configured.
func ResolveSecret(configured string, log *logger.Logger) ([]byte, error) {
	if secret := strings.TrimSpace(configured); secret != "" {
		return []byte(secret), nil
	}

	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate JWT fallback secret: %w", err)
	}
	if log != nil {
		log.Warn("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	}
	return []byte(base64.RawURLEncoding.EncodeToString(buf)), nil
}

// IssueToken signs an HS256 token for userID.
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT secret unavailable")
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
