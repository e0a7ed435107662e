package vault

import "time"

// FieldKind declares how a field is encoded and decoded. Declaring the kind
// up front makes decryption a static match instead of a runtime type probe.
type FieldKind int

// Field kinds. Opaque fields pass through encryption untouched.
const (
	KindOpaque FieldKind = iota
	KindString
	KindInt
	KindFloat
)

// Schema maps field names to their declared kinds. Fields absent from the
// schema are treated as Opaque.
type Schema map[string]FieldKind

// FieldStatus tags the outcome of decrypting one field.
type FieldStatus int

// Per-field decryption outcomes.
const (
	// StatusDecrypted means the field was decrypted and re-typed.
	StatusDecrypted FieldStatus = iota
	// StatusSkipped means the field was not subject to encryption.
	StatusSkipped
	// StatusFailed means decryption failed (wrong key, foreign ciphertext
	// or corruption). The ciphertext is never passed off as plaintext.
	StatusFailed
)

// String returns the status name.
func (s FieldStatus) String() string {
	switch s {
	case StatusDecrypted:
		return "decrypted"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FieldResult is the tagged outcome for one field of a decrypted record.
// Value is only meaningful for Decrypted and Skipped outcomes.
type FieldResult struct {
	Status FieldStatus
	Value  any
}

// keyRecord holds the per-resource encryption state.
type keyRecord struct {
	key          []byte
	schema       Schema
	lastRotation time.Time
}

// Stats summarises the registry.
type Stats struct {
	EncryptedResources int                      `json:"encrypted_resources"`
	Resources          []string                 `json:"resources,omitempty"`
	RotationAges       map[string]time.Duration `json:"rotation_ages,omitempty"`
}
