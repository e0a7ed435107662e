// Package secutil provides the cryptographic primitives shared by the
// access-control and encryption services: PBKDF2 password hashing, session
// token generation, password-derived resource keys and authenticated
// symmetric encryption.
package secutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	"github.com/odyssey-erp/dbguard/internal/shared"
)

const (
	saltBytes = 16
	keyBytes  = 32

	// resourceKeySalt separates resource-key derivation from password
	// hashing. Keys derived here guard field ciphertexts, not credentials.
	resourceKeySalt = "dbguard_resource_salt_v1"
)

// Hasher derives password hashes and resource keys with a fixed PBKDF2 cost.
type Hasher struct {
	iterations int
}

// NewHasher constructs a Hasher. Iterations below 100000 are raised to it.
func NewHasher(iterations int) *Hasher {
	if iterations < 100000 {
		iterations = 100000
	}
	return &Hasher{iterations: iterations}
}

// HashPassword derives a 32-byte PBKDF2-SHA256 hash of password. An empty
// salt generates a fresh random one; the returned salt must be stored
// alongside the hash for later verification.
func (h *Hasher) HashPassword(password, salt string) (string, string, error) {
	if salt == "" {
		raw := make([]byte, saltBytes)
		if _, err := rand.Read(raw); err != nil {
			return "", "", fmt.Errorf("generate salt: %w", err)
		}
		salt = hex.EncodeToString(raw)
	}
	derived := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, keyBytes, sha256.New)
	return base64.URLEncoding.EncodeToString(derived), salt, nil
}

// VerifyPassword recomputes the hash and compares in constant time.
func (h *Hasher) VerifyPassword(password, hash, salt string) bool {
	derived := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, keyBytes, sha256.New)
	expected := base64.URLEncoding.EncodeToString(derived)
	return hmac.Equal([]byte(expected), []byte(hash))
}

// DeriveResourceKey turns a password into a 32-byte symmetric key for
// field encryption.
func (h *Hasher) DeriveResourceKey(password string) []byte {
	return pbkdf2.Key([]byte(password), []byte(resourceKeySalt), h.iterations, keyBytes, sha256.New)
}

// GenerateSessionToken returns an opaque URL-safe token with 256 bits of
// entropy. Uniqueness among live sessions is the caller's responsibility.
func GenerateSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Encrypt seals plaintext with AES-256-GCM under key and returns a URL-safe
// token carrying the nonce and the authenticated ciphertext.
func Encrypt(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A token that does not decode or fails
// authentication (wrong key, corruption) returns an explicit error rather
// than a best-effort value.
func Decrypt(token string, key []byte) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrMalformedCiphertext, err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", shared.ErrMalformedCiphertext
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", shared.ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// NewAuditID returns a unique event identifier combining a high-resolution
// timestamp with random bits. Ordering across identical-timestamp collisions
// is not guaranteed.
func NewAuditID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	raw := make([]byte, 8)
	_, _ = rand.Read(raw)
	return fmt.Sprintf("%d-%x", time.Now().UnixMicro(), raw)
}
