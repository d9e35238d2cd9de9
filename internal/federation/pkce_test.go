package federation

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func TestGenerateVerifier_LengthAndUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		v, err := GenerateVerifier()
		if err != nil {
			t.Fatal(err)
		}
		// RFC 7636: entre 43 y 128 chars
		if len(v) < 43 || len(v) > 128 {
			t.Fatalf("verifier length %d out of range", len(v))
		}
		if seen[v] {
			t.Fatal("verifier repetido")
		}
		seen[v] = true
	}
}

func TestChallengeS256(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	sum := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])

	if got := ChallengeS256(verifier); got != want {
		t.Fatalf("challenge mismatch: got %s want %s", got, want)
	}
	// Determinístico
	if ChallengeS256(verifier) != ChallengeS256(verifier) {
		t.Fatal("challenge must be deterministic")
	}
}
