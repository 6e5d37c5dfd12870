package auth

import (
	"testing"
	"time"
)

func TestSignAndParse(t *testing.T) {
	token, _, err := SignAccessToken(42, "alice", time.Minute)
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Type != "access" {
		t.Fatalf("bad claims: %+v", claims)
	}
}

func TestParse_Expired(t *testing.T) {
	token, _, err := SignAccessToken(42, "alice", -time.Minute)
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParse_Garbage(t *testing.T) {
	if _, err := ParseToken("not-a-token"); err == nil {
		t.Fatal("expected parse error")
	}
}
