package auth

import (
	"testing"
	"time"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}

	tok, err := CreateSessionToken("p1", "s1", cfg)
	if err != nil {
		t.Fatalf("CreateSessionToken: %v", err)
	}

	claims, err := VerifySessionToken(tok, cfg)
	if err != nil {
		t.Fatalf("VerifySessionToken: %v", err)
	}
	if claims.ParticipantID != "p1" || claims.SessionID != "s1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSessionToken_WrongSecret(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateSessionToken("p1", "s1", cfg)
	if err != nil {
		t.Fatalf("CreateSessionToken: %v", err)
	}

	if _, err := VerifySessionToken(tok, TokenConfig{Secret: "other", Expiry: time.Hour}); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestSessionToken_Expired(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: -time.Minute, Issuer: "test"}
	if _, err := CreateSessionToken("p1", "s1", cfg); err == nil {
		t.Fatalf("expected error for non-positive expiry")
	}
}

func TestSessionToken_MissingFields(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	if _, err := CreateSessionToken("", "s1", cfg); err == nil {
		t.Fatalf("expected error for missing participant")
	}
	if _, err := CreateSessionToken("p1", "", cfg); err == nil {
		t.Fatalf("expected error for missing session")
	}
}
