package auth

import (
	"errors"
	"testing"
	"time"

	"market-delivery/internal/domain"
)

func TestAuthorizeRoles(t *testing.T) {
	a := New("secret", time.Hour)
	token, _, err := a.IssueToken("dana", domain.RoleCustomer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := a.Authorize("Bearer "+token, domain.RoleCustomer, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if claims.Subject != "dana" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if _, err := a.Authorize("Bearer "+token, domain.RoleAdmin); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := a.Authorize(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("missing scheme must be unauthorized, got %v", err)
	}
}

func TestParseTokenRejectsForeignAndExpired(t *testing.T) {
	a := New("secret", time.Minute)
	other := New("other-secret", time.Minute)
	token, _, err := other.IssueToken("eve", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := a.ParseToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for foreign key, got %v", err)
	}

	issued := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }
	token, _, err = a.IssueToken("dana", domain.RoleCustomer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	a.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := a.ParseToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}
}

func TestIssueTokenValidatesInput(t *testing.T) {
	a := New("secret", time.Hour)
	if _, _, err := a.IssueToken("", domain.RoleAdmin); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if _, _, err := a.IssueToken("x", "drone"); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}
