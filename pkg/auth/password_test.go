package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func init() {
	Cost = bcrypt.MinCost
}

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "s3cret" {
		t.Fatalf("expected opaque hash, got %q", hash)
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := HashPassword("same")
	if err != nil {
		t.Fatalf("hash first: %v", err)
	}
	second, err := HashPassword("same")
	if err != nil {
		t.Fatalf("hash second: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct salted hashes")
	}
}

func TestCheckPasswordRejectsEmptyHash(t *testing.T) {
	if CheckPassword("anything", "") {
		t.Fatalf("empty hash must never match")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("ok"); err != nil {
		t.Fatalf("expected valid password, got: %v", err)
	}
	if err := ValidatePassword(""); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got: %v", err)
	}
	if err := ValidatePassword(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got: %v", err)
	}
}
