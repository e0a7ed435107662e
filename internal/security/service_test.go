package security

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/dbguard/internal/access"
	"github.com/odyssey-erp/dbguard/internal/audit"
	"github.com/odyssey-erp/dbguard/internal/secutil"
	"github.com/odyssey-erp/dbguard/internal/vault"
)

type harness struct {
	manager *Manager
	access  *access.Service
	audit   *audit.Service
	vault   *vault.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.Default()
	hasher := secutil.NewHasher(100000)
	accessSvc := access.NewService(logger, hasher, access.Options{})
	auditSvc := audit.NewService(logger, 1000, nil)
	vaultSvc := vault.NewService(logger, hasher)
	return &harness{
		manager: NewManager(logger, accessSvc, auditSvc, vaultSvc),
		access:  accessSvc,
		audit:   auditSvc,
		vault:   vaultSvc,
	}
}

func TestEndToEndQueryAuthorization(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.access.CreateUser("alice", "pw1", []string{"READ_ONLY"}))

	token, ok := h.manager.Login("alice", "pw1", "192.168.1.10")
	require.True(t, ok)
	require.NotEmpty(t, token)

	authorized, msg := h.manager.ExecuteSecureQuery(token, map[string]any{"SELECT": []string{"*"}, "FROM": "orders"}, "192.168.1.10")
	assert.True(t, authorized)
	assert.Equal(t, "Query authorized", msg)

	authorized, msg = h.manager.ExecuteSecureQuery(token, map[string]any{"DELETE": true, "TABLE": "orders"}, "192.168.1.10")
	assert.False(t, authorized)
	assert.Equal(t, "Permission denied", msg)

	selects := h.audit.Logs(audit.Filter{Type: audit.EventSelect, User: "alice"})
	require.Len(t, selects, 1)
	assert.True(t, selects[0].Success)
	assert.Equal(t, "orders", selects[0].Resource)

	denials := h.audit.Logs(audit.Filter{Type: audit.EventPermissionDenied, User: "alice"})
	require.Len(t, denials, 1)
	assert.False(t, denials[0].Success)
	assert.Equal(t, "DELETE", denials[0].Details["query_type"])
}

func TestLoginAuditTrail(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.access.CreateUser("alice", "pw1", nil))

	_, ok := h.manager.Login("alice", "wrong", "")
	assert.False(t, ok)
	token, ok := h.manager.Login("alice", "pw1", "")
	require.True(t, ok)

	failures := h.audit.Logs(audit.Filter{Type: audit.EventFailedLogin})
	require.Len(t, failures, 1)
	assert.Empty(t, failures[0].SessionID)

	logins := h.audit.Logs(audit.Filter{Type: audit.EventLogin})
	require.Len(t, logins, 1)
	assert.Equal(t, token, logins[0].SessionID)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.access.CreateUser("alice", "pw1", nil))

	token, ok := h.manager.Login("alice", "pw1", "")
	require.True(t, ok)

	h.manager.Logout(token)
	_, ok = h.access.VerifySession(token)
	assert.False(t, ok)

	logouts := h.audit.Logs(audit.Filter{Type: audit.EventLogout})
	require.Len(t, logouts, 1)
	assert.Equal(t, "alice", logouts[0].User)

	// A second logout on a dead token records nothing.
	h.manager.Logout(token)
	assert.Len(t, h.audit.Logs(audit.Filter{Type: audit.EventLogout}), 1)
}

func TestExecuteSecureQueryInvalidSession(t *testing.T) {
	h := newHarness(t)

	authorized, msg := h.manager.ExecuteSecureQuery("no-such-token", map[string]any{"SELECT": []string{"*"}, "FROM": "orders"}, "")
	assert.False(t, authorized)
	assert.Equal(t, "Invalid session", msg)
	assert.Empty(t, h.audit.Logs(audit.Filter{}), "no audit event for an unauthenticated query")
}

func TestUnknownVerbRequiresSelect(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.access.CreateUser("alice", "pw1", []string{"READ_ONLY"}))

	token, ok := h.manager.Login("alice", "pw1", "")
	require.True(t, ok)

	authorized, _ := h.manager.ExecuteSecureQuery(token, map[string]any{"EXPLAIN": true, "FROM": "orders"}, "")
	assert.True(t, authorized, "unknown verbs fall back to SELECT-equivalent authorization")

	// Missing FROM/TABLE targets the "unknown" resource.
	authorized, _ = h.manager.ExecuteSecureQuery(token, map[string]any{"SELECT": []string{"1"}}, "")
	assert.True(t, authorized)
	entries := h.audit.Logs(audit.Filter{Type: audit.EventSelect})
	require.NotEmpty(t, entries)
	assert.Equal(t, "unknown", entries[len(entries)-1].Resource)
}

func TestInitializeSeedsDefaults(t *testing.T) {
	h := newHarness(t)
	h.manager.Initialize()

	token, ok := h.manager.Login("admin", "admin123", "")
	require.True(t, ok)
	assert.True(t, h.access.CheckPermission(token, access.PermDrop, access.ResourceTable, "anything"),
		"seeded admin holds DBA")

	_, ok = h.manager.Login("readonly", "readonly123", "")
	assert.True(t, ok)
	_, ok = h.manager.Login("developer", "dev123", "")
	assert.True(t, ok)
}

func TestInitializeTwiceIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.manager.Initialize()
	before := h.access.Statistics()

	h.manager.Initialize()
	after := h.access.Statistics()

	assert.Equal(t, before.TotalUsers, after.TotalUsers)
	assert.Equal(t, before.TotalPrivileges, after.TotalPrivileges)
}

func TestEncryptionFacadeAuditsKeyAccess(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.manager.EnableEncryption("admin", "people", "pw", vault.Schema{"ssn": vault.KindString}))
	require.True(t, h.manager.RotateKey("admin", "people", "pw2"))
	assert.False(t, h.manager.RotateKey("admin", "ghost", "pw"))

	events := h.audit.Logs(audit.Filter{Type: audit.EventEncryptionKeyAccess})
	require.Len(t, events, 3)
	assert.Equal(t, "enable", events[0].Details["action"])
	assert.Equal(t, "rotate", events[1].Details["action"])
	assert.False(t, events[2].Success)
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	h.manager.Initialize()

	token, ok := h.manager.Login("admin", "admin123", "")
	require.True(t, ok)
	h.manager.ExecuteSecureQuery(token, map[string]any{"SELECT": []string{"*"}, "FROM": "orders"}, "")

	dash, err := h.manager.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, dash.AccessControl.TotalUsers)
	assert.GreaterOrEqual(t, dash.AuditLogs.TotalEvents, 2)
	assert.Equal(t, "HIGH", dash.SecurityLevel)
	assert.Empty(t, dash.Recommendations)
}

func TestDashboardFlagsRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.access.CreateUser("alice", "pw1", nil))

	for i := 0; i < 11; i++ {
		_, ok := h.manager.Login("alice", "wrong", "")
		require.False(t, ok)
	}

	dash, err := h.manager.Dashboard(context.Background())
	require.NoError(t, err)

	found := false
	for _, rec := range dash.Recommendations {
		if strings.Contains(rec, "alice") {
			found = true
		}
	}
	assert.True(t, found, "expected a recommendation naming the locked-out user, got %v", dash.Recommendations)
}

func TestDashboardContextCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The build is fast; either a dashboard or ctx.Err is acceptable, but
	// the call must return promptly.
	done := make(chan struct{})
	go func() {
		_, _ = h.manager.Dashboard(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard did not return on a cancelled context")
	}
}
