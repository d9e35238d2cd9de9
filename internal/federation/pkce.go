package federation

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// GenerateVerifier genera un code_verifier PKCE aleatorio.
// 32 bytes → 43 chars base64url sin padding, el mínimo que pide RFC 7636.
func GenerateVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ChallengeS256 deriva el code_challenge del verifier con el método S256:
// base64url(sha256(verifier)) sin padding.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
