package auth

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	tok, err := GenerateToken(secret, "user-123")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	id, err := ParseToken(secret, tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "user-123" {
		t.Errorf("user id: want user-123, got %s", id)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	tok, err := GenerateToken([]byte("right"), "user-123")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken([]byte("wrong"), tok); err == nil {
		t.Fatal("token signed with a different secret must not parse")
	}
}

func TestTokenGarbage(t *testing.T) {
	if _, err := ParseToken([]byte("secret"), "not-a-token"); err == nil {
		t.Fatal("garbage must not parse")
	}
}
