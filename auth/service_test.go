package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestService_IssueAndVerify(t *testing.T) {
	svc, err := NewService("test-secret")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	token, err := svc.Issue(Agent{ID: "agent-1", Email: "john@northwind.example", Name: "John Agent"})
	if err != nil {
		t.Fatalf("issue: unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("issue: expected token, got empty string")
	}

	agent, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if agent.ID != "agent-1" || agent.Email != "john@northwind.example" {
		t.Fatalf("verify token: unexpected agent %+v", agent)
	}
	if agent.Role != RoleAgent {
		t.Fatalf("verify token: expected default role %s got %s", RoleAgent, agent.Role)
	}
}

func TestService_VerifyRejects(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _ := NewService("test-secret", WithClock(func() time.Time { return now }), WithTTL(time.Hour))
	token, err := svc.Issue(Agent{ID: "agent-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, _ := NewService("other-secret")
	if _, err := other.Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected wrong secret to be rejected, got %v", err)
	}

	foreign, _ := NewService("test-secret", WithIssuer("someone-else"), WithClock(func() time.Time { return now }))
	if _, err := foreign.Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected issuer mismatch to be rejected, got %v", err)
	}

	later, _ := NewService("test-secret", WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
	if _, err := later.Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	if _, err := svc.Verify(token + "x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected tampered token to be rejected, got %v", err)
	}
	if _, err := svc.Verify(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected empty token to be rejected, got %v", err)
	}
}

func TestService_RejectsUnsignedAlgorithm(t *testing.T) {
	svc, _ := NewService("test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "agent-1",
		"role": "agent",
		"iss":  "signflow",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := svc.Verify(unsigned); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected alg=none to be rejected, got %v", err)
	}
}

func TestService_IssueValidation(t *testing.T) {
	if _, err := NewService("  "); !errors.Is(err, ErrSecretRequired) {
		t.Fatalf("expected ErrSecretRequired, got %v", err)
	}
	svc, _ := NewService("test-secret")
	if _, err := svc.Issue(Agent{}); err == nil {
		t.Fatal("expected error for missing agent id")
	}
	if _, err := svc.Issue(Agent{ID: "a", Role: "client"}); err == nil || !strings.Contains(err.Error(), "invalid role") {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for header, want := range cases {
		got, ok := BearerToken(header)
		if got != want || ok != (want != "") {
			t.Errorf("BearerToken(%q) = %q, %v", header, got, ok)
		}
	}
}
