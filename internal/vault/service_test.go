package vault

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/dbguard/internal/secutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(slog.Default(), secutil.NewHasher(100000))
}

func personSchema() Schema {
	return Schema{
		"name":    KindString,
		"age":     KindInt,
		"balance": KindFloat,
	}
}

func TestEncryptDecryptRoundTripPreservesTypes(t *testing.T) {
	svc := newTestService(t)
	require.True(t, svc.EnableEncryption("people", "table-password", personSchema()))

	record := map[string]any{"name": "Alice", "age": 30, "balance": 12.5}
	encrypted := svc.EncryptRecord("people", record)

	for field := range record {
		token, isString := encrypted[field].(string)
		require.True(t, isString, "field %s should be a ciphertext string", field)
		require.NotEqual(t, record[field], token)
	}

	decrypted := svc.DecryptRecord("people", encrypted)
	require.Len(t, decrypted, 3)
	for field, result := range decrypted {
		assert.Equal(t, StatusDecrypted, result.Status, "field %s", field)
	}
	assert.Equal(t, "Alice", decrypted["name"].Value)
	assert.Equal(t, 30, decrypted["age"].Value)
	assert.Equal(t, 12.5, decrypted["balance"].Value)
}

func TestPassThroughWithoutKeyRecord(t *testing.T) {
	svc := newTestService(t)

	record := map[string]any{"name": "Alice", "age": 30}
	assert.Equal(t, record, svc.EncryptRecord("unencrypted", record))

	decrypted := svc.DecryptRecord("unencrypted", record)
	for field, result := range decrypted {
		assert.Equal(t, StatusSkipped, result.Status, "field %s", field)
		assert.Equal(t, record[field], result.Value)
	}
}

func TestOpaqueAndUndeclaredFieldsPassThrough(t *testing.T) {
	svc := newTestService(t)
	schema := Schema{"ssn": KindString, "attachment": KindOpaque}
	require.True(t, svc.EnableEncryption("people", "pw", schema))

	record := map[string]any{
		"ssn":        "111-22-3333",
		"attachment": []byte{0x01, 0x02},
		"undeclared": "left alone",
	}
	encrypted := svc.EncryptRecord("people", record)

	assert.NotEqual(t, record["ssn"], encrypted["ssn"])
	assert.Equal(t, record["attachment"], encrypted["attachment"])
	assert.Equal(t, record["undeclared"], encrypted["undeclared"])

	decrypted := svc.DecryptRecord("people", encrypted)
	assert.Equal(t, StatusDecrypted, decrypted["ssn"].Status)
	assert.Equal(t, "111-22-3333", decrypted["ssn"].Value)
	assert.Equal(t, StatusSkipped, decrypted["attachment"].Status)
	assert.Equal(t, StatusSkipped, decrypted["undeclared"].Status)
}

func TestRotationFailsOldCiphertexts(t *testing.T) {
	svc := newTestService(t)
	require.True(t, svc.EnableEncryption("people", "old-password", personSchema()))

	encrypted := svc.EncryptRecord("people", map[string]any{"name": "Alice"})
	require.True(t, svc.RotateKey("people", "new-password"))

	decrypted := svc.DecryptRecord("people", encrypted)
	result := decrypted["name"]
	assert.Equal(t, StatusFailed, result.Status,
		"ciphertext under the rotated-out key must fail, not pass through")
	assert.Nil(t, result.Value, "a failed field must not leak the ciphertext")

	// New writes round-trip under the rotated key.
	fresh := svc.EncryptRecord("people", map[string]any{"name": "Bob"})
	assert.Equal(t, StatusDecrypted, svc.DecryptRecord("people", fresh)["name"].Status)
}

func TestForeignCiphertextFails(t *testing.T) {
	svc := newTestService(t)
	require.True(t, svc.EnableEncryption("people", "pw", Schema{"note": KindString}))

	decrypted := svc.DecryptRecord("people", map[string]any{"note": "not a ciphertext"})
	assert.Equal(t, StatusFailed, decrypted["note"].Status)
}

func TestRotateUnknownResource(t *testing.T) {
	svc := newTestService(t)
	assert.False(t, svc.RotateKey("nope", "pw"))
}

func TestReEnableOverwritesKey(t *testing.T) {
	svc := newTestService(t)
	require.True(t, svc.EnableEncryption("people", "first", Schema{"name": KindString}))
	encrypted := svc.EncryptRecord("people", map[string]any{"name": "Alice"})

	require.True(t, svc.EnableEncryption("people", "second", Schema{"name": KindString}))
	assert.Equal(t, StatusFailed, svc.DecryptRecord("people", encrypted)["name"].Status)
}

func TestStatistics(t *testing.T) {
	svc := newTestService(t)
	require.True(t, svc.EnableEncryption("people", "pw", nil))
	require.True(t, svc.EnableEncryption("accounts", "pw", nil))

	stats := svc.Statistics()
	assert.Equal(t, 2, stats.EncryptedResources)
	assert.ElementsMatch(t, []string{"people", "accounts"}, stats.Resources)
	assert.Contains(t, stats.RotationAges, "people")
}
