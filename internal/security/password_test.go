package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("SuperSecretPassword123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if hash == "SuperSecretPassword123" || !strings.HasPrefix(hash, "$2a$") {
		t.Fatalf("unexpected hash %q", hash)
	}

	ok, err := h.Verify("SuperSecretPassword123", hash)
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}

	ok, err = h.Verify("wrong", hash)
	if err != nil || ok {
		t.Fatalf("Verify(wrong) = %v, %v; want false, nil", ok, err)
	}

	if _, err := h.Verify("x", "not-a-bcrypt-hash"); err == nil {
		t.Fatalf("expected malformed hash to error")
	}
}

func TestBcryptHasher_SaltsEveryHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	a, _ := h.Hash("same")
	b, _ := h.Hash("same")

	if a == b {
		t.Fatalf("equal inputs must not produce equal hashes")
	}
}

func TestNewBcryptHasher_DefaultCost(t *testing.T) {
	h := NewBcryptHasher(99)

	hash, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != DefaultCost {
		t.Fatalf("cost = %d, %v; want %d", cost, err, DefaultCost)
	}
}

func TestBcryptHasher_RejectsBytesPastLimit(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	pw := strings.Repeat("a", MaxPasswordBytes)

	hash, err := h.Hash(pw)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if ok, err := h.Verify(pw, hash); err != nil || !ok {
		t.Fatalf("Verify(exact) = %v, %v; want true, nil", ok, err)
	}

	ok, err := h.Verify(pw+"DIFFERENT", hash)
	if err != nil || ok {
		t.Fatalf("Verify(longer) = %v, %v; want false, nil", ok, err)
	}
}
