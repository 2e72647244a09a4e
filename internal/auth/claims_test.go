package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-0123"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("ops-1", RoleOperator, testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.Subject != "ops-1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "ops-1")
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", claims.Role, RoleOperator)
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
	if claims.Issuer != "gridswitch" {
		t.Errorf("Issuer = %q, want gridswitch", claims.Issuer)
	}

	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if lifetime != 15*time.Minute {
		t.Errorf("token lifetime = %v, want 15m", lifetime)
	}
}

func TestGenerateToken_DefaultTTL(t *testing.T) {
	token, err := GenerateToken("ops-1", RoleViewer, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != DefaultTokenTTL {
		t.Errorf("token lifetime = %v, want %v", got, DefaultTokenTTL)
	}
}

func TestGenerateToken_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		role    Role
		secret  string
		wantErr error
	}{
		{"empty subject", "", RoleViewer, testSecret, ErrInvalidSubject},
		{"subject with spaces", "ops one", RoleViewer, testSecret, ErrInvalidSubject},
		{"unknown role", "ops-1", Role("owner"), testSecret, ErrInvalidRole},
		{"short secret", "ops-1", RoleViewer, "short", ErrSecretTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateToken(tt.subject, tt.role, tt.secret, time.Minute)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GenerateToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("ops-1", RoleViewer, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	_, err = ParseToken(token, "another-secret-key-for-jwt-signing")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken("not-a-valid-jwt", testSecret)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

// signClaims signs arbitrary claims so tests can build tokens that
// GenerateToken would refuse to produce.
func signClaims(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func TestParseToken_InvalidClaims(t *testing.T) {
	now := time.Now()
	valid := func() CustomClaims {
		return CustomClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops-1",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
			Role: RoleAdmin,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *CustomClaims)
	}{
		{"expired", func(c *CustomClaims) { c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute)) }},
		{"no expiry", func(c *CustomClaims) { c.ExpiresAt = nil }},
		{"missing subject", func(c *CustomClaims) { c.Subject = "" }},
		{"unknown role", func(c *CustomClaims) { c.Role = "owner" }},
		{"missing role", func(c *CustomClaims) { c.Role = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := valid()
			tt.mutate(&claims)

			_, err := ParseToken(signClaims(t, claims), testSecret)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: RoleAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := ParseToken(signed, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid for HS512", err)
	}
}
