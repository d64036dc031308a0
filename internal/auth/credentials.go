package auth

import "crypto/subtle"

// CredentialVerifier checks a login password against the server credential.
// Every account shares one credential for now; the interface is the seam
// where per-user passwords slot in later without touching the login flow.
type CredentialVerifier interface {
	Verify(password string) (bool, error)
}

// SharedSecretVerifier verifies against a plaintext shared secret.
type SharedSecretVerifier struct {
	secret string
}

// NewSharedSecretVerifier creates a verifier for the given shared secret.
func NewSharedSecretVerifier(secret string) *SharedSecretVerifier {
	return &SharedSecretVerifier{secret: secret}
}

// Verify compares the password to the shared secret in constant time.
func (v *SharedSecretVerifier) Verify(password string) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(v.secret), []byte(password)) == 1, nil
}

// Argon2Verifier verifies against an Argon2id hash of the server credential.
// Use this when the plaintext secret should not live in process memory or config.
type Argon2Verifier struct {
	encodedHash string
}

// NewArgon2Verifier creates a verifier for the given encoded Argon2id hash.
func NewArgon2Verifier(encodedHash string) *Argon2Verifier {
	return &Argon2Verifier{encodedHash: encodedHash}
}

// Verify checks the password against the stored hash.
func (v *Argon2Verifier) Verify(password string) (bool, error) {
	return VerifyPassword(v.encodedHash, password)
}
