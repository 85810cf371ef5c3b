package goauth

import (
	"context"
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/google/uuid"
)

func TestToIdentity(t *testing.T) {
	now := time.Now()
	user := &auth.User{
		ID:             uuid.New(),
		Email:          "test@example.com",
		EmailValidated: true,
		Metadata:       map[string]any{"org_id": "abc"},
		CreatedAt:      &now,
		UpdatedAt:      &now,
	}

	result := toIdentity(user)
	if result == nil {
		t.Fatalf("expected user to be converted")
	}
	if result.Email != user.Email {
		t.Fatalf("expected email to be copied")
	}
	if !result.Confirmed {
		t.Fatalf("expected validated email to map to confirmed")
	}
	if result.Metadata["org_id"] != "abc" {
		t.Fatalf("expected metadata to be copied")
	}
	if result.Raw != user {
		t.Fatalf("expected raw pointer to be preserved")
	}
}

func TestToIdentityNil(t *testing.T) {
	if toIdentity(nil) != nil {
		t.Fatalf("expected nil input to yield nil")
	}
}

func TestTombstoneEmail(t *testing.T) {
	id := uuid.New()
	out := tombstoneEmail(id, "ada@example.com")
	if !strings.Contains(out, id.String()) || !strings.Contains(out, "ada@example.com") {
		t.Fatalf("expected tombstone to namespace the original address, got %q", out)
	}
	if out == "ada@example.com" {
		t.Fatalf("expected tombstone to differ from the original address")
	}
}

func TestExchangeCredentialRejectsBlankBearer(t *testing.T) {
	adapter := NewCredentialAdapter(nil)

	if _, err := adapter.ExchangeCredential(context.Background(), "  "); err != types.ErrUnauthorized {
		t.Fatalf("expected blank bearer to be unauthorized, got %v", err)
	}
	if _, err := adapter.ExchangeCredential(context.Background(), "token"); err != types.ErrUnauthorized {
		t.Fatalf("expected missing exchange function to reject every bearer, got %v", err)
	}
}

func TestExchangeCredentialRejectsFailedExchange(t *testing.T) {
	adapter := NewCredentialAdapter(nil, WithExchange(func(context.Context, string) (string, error) {
		return "", nil
	}))

	if _, err := adapter.ExchangeCredential(context.Background(), "token"); err != types.ErrUnauthorized {
		t.Fatalf("expected empty identifier to be unauthorized, got %v", err)
	}
}
