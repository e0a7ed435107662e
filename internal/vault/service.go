// Package vault manages per-resource symmetric encryption keys and
// field-level encryption of records on their way to and from storage.
package vault

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/odyssey-erp/dbguard/internal/secutil"
)

// Service is the per-resource encryption registry. A resource is encrypted
// iff it has a key record; absence means pass-through. One mutex guards the
// registry.
type Service struct {
	logger *slog.Logger
	hasher *secutil.Hasher
	now    func() time.Time

	mu      sync.Mutex
	records map[string]*keyRecord
}

// NewService constructs an empty registry.
func NewService(logger *slog.Logger, hasher *secutil.Hasher) *Service {
	return &Service{
		logger:  logger,
		hasher:  hasher,
		now:     time.Now,
		records: make(map[string]*keyRecord),
	}
}

// EnableEncryption derives a key from password and attaches it to resource
// together with the field schema. Re-enabling overwrites the key, which is
// equivalent to a rotation.
func (s *Service) EnableEncryption(resource, password string, schema Schema) bool {
	if resource == "" || password == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(Schema, len(schema))
	for field, kind := range schema {
		copied[field] = kind
	}
	s.records[resource] = &keyRecord{
		key:          s.hasher.DeriveResourceKey(password),
		schema:       copied,
		lastRotation: s.now(),
	}
	return true
}

// EncryptRecord encrypts the String/Int/Float fields of record per the
// resource schema. Resources without a key record pass through unchanged, as
// do Opaque and undeclared fields. A field whose encryption fails is dropped
// from the output rather than written as plaintext.
func (s *Service) EncryptRecord(resource string, record map[string]any) map[string]any {
	s.mu.Lock()
	rec, ok := s.records[resource]
	if !ok {
		s.mu.Unlock()
		return record
	}
	key := rec.key
	schema := rec.schema
	s.mu.Unlock()

	result := make(map[string]any, len(record))
	for field, value := range record {
		kind := schema[field]
		if kind == KindOpaque {
			result[field] = value
			continue
		}
		token, err := secutil.Encrypt(fmt.Sprintf("%v", value), key)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("encrypt field", slog.String("resource", resource), slog.String("field", field), slog.Any("error", err))
			}
			continue
		}
		result[field] = token
	}
	return result
}

// DecryptRecord reverses EncryptRecord, reporting a tagged outcome per
// field. Declared numeric fields are re-parsed to their original types.
// Failed outcomes carry no value; the ciphertext is never surfaced as if it
// were the plaintext.
func (s *Service) DecryptRecord(resource string, record map[string]any) map[string]FieldResult {
	s.mu.Lock()
	rec, ok := s.records[resource]
	var key []byte
	var schema Schema
	if ok {
		key = rec.key
		schema = rec.schema
	}
	s.mu.Unlock()

	result := make(map[string]FieldResult, len(record))
	for field, value := range record {
		if !ok {
			result[field] = FieldResult{Status: StatusSkipped, Value: value}
			continue
		}
		kind := schema[field]
		if kind == KindOpaque {
			result[field] = FieldResult{Status: StatusSkipped, Value: value}
			continue
		}
		token, isString := value.(string)
		if !isString {
			result[field] = FieldResult{Status: StatusSkipped, Value: value}
			continue
		}
		plaintext, err := secutil.Decrypt(token, key)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("decrypt field", slog.String("resource", resource), slog.String("field", field), slog.Any("error", err))
			}
			result[field] = FieldResult{Status: StatusFailed}
			continue
		}
		typed, err := retype(kind, plaintext)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("retype field", slog.String("resource", resource), slog.String("field", field), slog.Any("error", err))
			}
			result[field] = FieldResult{Status: StatusFailed}
			continue
		}
		result[field] = FieldResult{Status: StatusDecrypted, Value: typed}
	}
	return result
}

// retype converts a decrypted string back to the declared kind.
func retype(kind FieldKind, plaintext string) (any, error) {
	switch kind {
	case KindInt:
		n, err := strconv.Atoi(plaintext)
		if err != nil {
			return nil, fmt.Errorf("parse int: %w", err)
		}
		return n, nil
	case KindFloat:
		f, err := strconv.ParseFloat(plaintext, 64)
		if err != nil {
			return nil, fmt.Errorf("parse float: %w", err)
		}
		return f, nil
	default:
		return plaintext, nil
	}
}

// RotateKey replaces the stored key and rotation timestamp. It does not
// re-encrypt previously written ciphertexts; callers needing continuity must
// run a separate re-encryption pass, and decrypts under the old key will
// report Failed outcomes.
func (s *Service) RotateKey(resource, newPassword string) bool {
	if newPassword == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[resource]
	if !ok {
		return false
	}
	rec.key = s.hasher.DeriveResourceKey(newPassword)
	rec.lastRotation = s.now()
	return true
}

// Statistics summarises the registry with per-resource key ages.
func (s *Service) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		EncryptedResources: len(s.records),
		Resources:          make([]string, 0, len(s.records)),
		RotationAges:       make(map[string]time.Duration, len(s.records)),
	}
	now := s.now()
	for resource, rec := range s.records {
		stats.Resources = append(stats.Resources, resource)
		stats.RotationAges[resource] = now.Sub(rec.lastRotation)
	}
	return stats
}
