package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-for-tenant-tokens"

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier(testSecret)

	token, err := v.Sign("user_1", "org_1", "owner@example.test", RoleOwner, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	claims, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error: %v", err)
	}
	if claims.Subject != "user_1" || claims.OrgID != "org_1" || claims.Role != RoleOwner {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Email != "owner@example.test" {
		t.Errorf("Email = %q", claims.Email)
	}
}

func TestVerifier_DefaultRole(t *testing.T) {
	v := NewVerifier(testSecret)
	token, _ := v.Sign("user_1", "org_1", "", "", time.Hour)

	claims, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error: %v", err)
	}
	if claims.Role != RoleMember {
		t.Errorf("Role = %q, want %q", claims.Role, RoleMember)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier(testSecret)
	other := NewVerifier("some-other-secret")

	expired, _ := v.Sign("user_1", "org_1", "", RoleOwner, -time.Hour)
	wrongKey, _ := other.Sign("user_1", "org_1", "", RoleOwner, time.Hour)
	noOrg, _ := v.Sign("user_1", "", "", RoleOwner, time.Hour)
	noSub, _ := v.Sign("", "org_1", "", RoleOwner, time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1"},
		OrgID:            "org_1",
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrTokenExpired},
		{"wrong key", wrongKey, ErrInvalidToken},
		{"missing org", noOrg, ErrMissingClaims},
		{"missing subject", noSub, ErrMissingClaims},
		{"alg none", unsigned, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.VerifyToken(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("VerifyToken() err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVerifier_NoSecret(t *testing.T) {
	v := NewVerifier("")

	if _, err := v.VerifyToken("anything"); !errors.Is(err, ErrNoSecret) {
		t.Errorf("VerifyToken() err = %v, want ErrNoSecret", err)
	}
	if _, err := v.Sign("u", "o", "", RoleOwner, time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Errorf("Sign() err = %v, want ErrNoSecret", err)
	}

	var nilVerifier *Verifier
	if _, err := nilVerifier.VerifyToken("anything"); !errors.Is(err, ErrNoSecret) {
		t.Errorf("nil VerifyToken() err = %v, want ErrNoSecret", err)
	}
}
