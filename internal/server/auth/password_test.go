package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the plaintext")
	}

	if !CheckPassword(hash, "s3cret") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("expected mismatching password to fail")
	}
	if CheckPassword("not-a-hash", "s3cret") {
		t.Fatal("expected malformed hash to fail")
	}
}
