package shared

import "errors"

var (
	// ErrMalformedCiphertext occurs when a ciphertext token cannot be decoded.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	// ErrDecryptionFailed occurs when an authenticated decrypt does not verify.
	ErrDecryptionFailed = errors.New("decryption failed")
)
