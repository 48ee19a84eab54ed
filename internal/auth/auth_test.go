package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestTokens(t *testing.T, opts ...TokensOption) *Tokens {
	t.Helper()
	tok, err := NewTokens("test-secret", opts...)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tok
}

func TestIssueAndVerify(t *testing.T) {
	tokens := newTestTokens(t, WithIssuer("test-issuer"), WithTTL(30*time.Minute))

	token, expires, err := tokens.Issue(Identity{UserID: 42, Username: "rakoto", Role: "Admin"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected future expiration, got %v", expires)
	}

	id, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != 42 || id.Username != "rakoto" || !id.IsAdmin() {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	other, err := NewTokens("other-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	token, _, err := other.Issue(Identity{UserID: 1, Role: RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := newTestTokens(t).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	issuer := newTestTokens(t, WithTTL(time.Minute), WithClock(func() time.Time { return past }))
	token, _, err := issuer.Issue(Identity{UserID: 3, Role: RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := newTestTokens(t).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tokens := newTestTokens(t)
	for _, raw := range []string{"", "   ", "not.a.jwt"} {
		if _, err := tokens.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q) expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestIssueRequiresKnownRole(t *testing.T) {
	if _, _, err := newTestTokens(t).Issue(Identity{UserID: 1, Role: "superuser"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if _, _, err := newTestTokens(t).Issue(Identity{Role: RoleUser}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("  "); err == nil {
		t.Fatal("expected error")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), Identity{UserID: 7, Role: RoleAdmin})
	uid, ok := UserIDFromContext(ctx)
	if !ok || uid != 7 {
		t.Fatalf("unexpected user id: %d, ok=%v", uid, ok)
	}
	if !HasRole(ctx, "ADMIN") {
		t.Fatal("expected admin role")
	}
	if HasRole(ctx, RoleUser) {
		t.Fatal("unexpected role found")
	}
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("expected no identity")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong horse"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected short password rejection")
	}
}
