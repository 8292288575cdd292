package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("op-1", "operator", "ethos-security", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "secret", "ethos-security")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Subject != "op-1" || claims.Role != "operator" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("op-1", "operator", "ethos-security", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "other-secret", "ethos-security"); err == nil {
		t.Fatalf("expected wrong signing key to fail")
	}
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	pair, err := Issue("op-1", "operator", "someone-else", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "ethos-security"); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
}
