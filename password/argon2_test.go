package password

import (
	"strings"
	"testing"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()

	h, err := NewHasher(Config{
		Memory:      16 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}

	match, err := h.Verify("correct horse battery", hash)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !match {
		t.Fatal("expected matching password to verify")
	}

	match, err = h.Verify("wrong password!", hash)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if match {
		t.Fatal("expected mismatch to fail verification")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h := newTestHasher(t)

	first, err := h.Hash("same password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := h.Hash("same password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestVerifyUsesStoredParameters(t *testing.T) {
	weak := newTestHasher(t)
	strong, err := NewHasher(Config{
		Memory:      32 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	hash, err := weak.Hash("portable password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	// A hasher with different parameters must still verify against the
	// parameters encoded in the hash itself.
	match, err := strong.Verify("portable password", hash)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !match {
		t.Fatal("expected verification driven by encoded parameters")
	}
}

func TestShortPasswordRejected(t *testing.T) {
	h := newTestHasher(t)

	if _, err := h.Hash("short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t)

	for _, encoded := range []string{
		"",
		"not a hash",
		"$argon2id$v=19$m=bad$salt$key",
		"$bcrypt$v=19$m=16384,t=1,p=1$c2FsdA$a2V5",
	} {
		if _, err := h.Verify("whatever password", encoded); err == nil {
			t.Fatalf("expected malformed hash %q to error", encoded)
		}
	}
}

func TestConfigMinimums(t *testing.T) {
	if _, err := NewHasher(Config{}); err == nil {
		t.Fatal("expected zero config to be rejected")
	}
	if _, err := NewHasher(Config{Memory: 1, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}); err == nil {
		t.Fatal("expected undersized memory to be rejected")
	}
}
