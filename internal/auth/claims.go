package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the shortest HMAC secret accepted for signing.
const MinSecretLength = 32

// DefaultTokenTTL is used when no positive TTL is supplied.
const DefaultTokenTTL = 60 * time.Minute

// CustomClaims extends JWT standard claims with gridswitch-specific fields.
type CustomClaims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// GenerateToken creates a signed access token.
//
// Parameters:
//   - subject: Account name recorded in the sub claim
//   - role: Authorisation tier
//   - secret: HMAC secret, at least MinSecretLength bytes
//   - ttl: Lifetime; DefaultTokenTTL when zero or negative
//
// Returns:
//   - string: Compact signed JWT
//   - error: ErrInvalidSubject, ErrInvalidRole, ErrSecretTooShort or a
//     signing failure
func GenerateToken(subject string, role Role, secret string, ttl time.Duration) (string, error) {
	if !IsValidSubject(subject) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSubject, subject)
	}
	if !IsValidRole(role) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if len(secret) < MinSecretLength {
		return "", ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "gridswitch",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token's signature, expiry and required claims.
func ParseToken(tokenString, secret string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	return claims, nil
}
