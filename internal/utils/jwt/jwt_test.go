package jwt

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	token, err := CreateToken("42", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userID, err := ExtractUserIDFromToken(token, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "42" {
		t.Fatalf("expected user id 42, got %q", userID)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := CreateToken("42", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := ExtractUserIDFromToken(token, "other-secret"); err == nil {
		t.Fatal("expected verification to fail with the wrong secret")
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	if _, err := ExtractUserIDFromToken("not.a.token", "secret"); err == nil {
		t.Fatal("expected verification to fail")
	}
}
