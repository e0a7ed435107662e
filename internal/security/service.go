// Package security composes access control, audit logging and the encryption
// registry behind one facade: login/logout, permission-checked query
// authorization and a security-status dashboard.
package security

import (
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/dbguard/internal/access"
	"github.com/odyssey-erp/dbguard/internal/audit"
	"github.com/odyssey-erp/dbguard/internal/vault"
)

// Query authorization messages returned to callers.
const (
	msgInvalidSession   = "Invalid session"
	msgPermissionDenied = "Permission denied"
	msgQueryAuthorized  = "Query authorized"
)

// Manager is the security facade. It only decides authorization; it never
// executes queries.
type Manager struct {
	logger *slog.Logger
	access *access.Service
	audit  *audit.Service
	vault  *vault.Service

	mu          sync.Mutex
	initialized bool

	dashboards singleflight.Group
}

// NewManager composes the facade from its components.
func NewManager(logger *slog.Logger, accessSvc *access.Service, auditSvc *audit.Service, vaultSvc *vault.Service) *Manager {
	return &Manager{
		logger: logger,
		access: accessSvc,
		audit:  auditSvc,
		vault:  vaultSvc,
	}
}

// Initialize seeds the default users and privileges on top of the system
// roles. A second call is a logged no-op rather than a partial re-seed.
func (m *Manager) Initialize() {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		m.logger.Warn("security already initialized, skipping re-seed")
		return
	}
	m.initialized = true
	m.mu.Unlock()

	m.access.CreateUser("admin", "admin123", []string{"DBA"})
	m.access.CreateUser("readonly", "readonly123", []string{"READ_ONLY"})
	m.access.CreateUser("developer", "dev123", []string{"DEVELOPER"})

	m.access.GrantPrivilege("DBA", access.ResourceDatabase, "main_db", []access.Permission{access.PermAll}, "system")
	m.access.GrantPrivilege("READ_ONLY", access.ResourceTable, "*", []access.Permission{access.PermSelect}, "system")
	m.access.GrantPrivilege("DEVELOPER", access.ResourceTable, "*",
		[]access.Permission{access.PermSelect, access.PermInsert, access.PermUpdate, access.PermDelete}, "system")

	m.logger.Info("security system initialized with default configuration")
}

// Login authenticates the user and records a LOGIN or FAILED_LOGIN event.
func (m *Manager) Login(username, password, ipAddress string) (string, bool) {
	token, ok := m.access.Authenticate(username, password, ipAddress)
	if ok {
		m.audit.Log(audit.Record{
			Type:      audit.EventLogin,
			User:      username,
			Resource:  "database",
			Success:   true,
			Details:   map[string]any{"ip_address": ipAddress},
			IPAddress: ipAddress,
			SessionID: token,
		})
		return token, true
	}
	m.audit.Log(audit.Record{
		Type:      audit.EventFailedLogin,
		User:      username,
		Resource:  "database",
		Success:   false,
		Details:   map[string]any{"ip_address": ipAddress},
		IPAddress: ipAddress,
	})
	return "", false
}

// Logout terminates the session and records a LOGOUT event. Unknown or
// expired tokens are ignored.
func (m *Manager) Logout(token string) {
	info, ok := m.access.VerifySession(token)
	if !ok {
		return
	}
	m.access.TerminateSession(token)
	m.audit.Log(audit.Record{
		Type:      audit.EventLogout,
		User:      info.Username,
		Resource:  "database",
		Success:   true,
		IPAddress: info.IPAddress,
		SessionID: token,
	})
}

// ExecuteSecureQuery authorizes a structured query description against the
// session's permissions. Denials record a PERMISSION_DENIED event; granted
// queries record an event named after the verb.
func (m *Manager) ExecuteSecureQuery(token string, query map[string]any, ipAddress string) (bool, string) {
	info, ok := m.access.VerifySession(token)
	if !ok {
		return false, msgInvalidSession
	}

	verb := classifyQuery(query)
	permission, event := requiredPermission(verb)
	resource := queryResource(query)

	if !m.access.CheckPermission(token, permission, access.ResourceTable, resource) {
		m.audit.Log(audit.Record{
			Type:     audit.EventPermissionDenied,
			User:     info.Username,
			Resource: resource,
			Success:  false,
			Details: map[string]any{
				"query_type":          verb,
				"required_permission": string(permission),
			},
			IPAddress: ipAddress,
			SessionID: token,
		})
		return false, msgPermissionDenied
	}

	m.audit.Log(audit.Record{
		Type:      event,
		User:      info.Username,
		Resource:  resource,
		Success:   true,
		Details:   map[string]any{"query": query},
		IPAddress: ipAddress,
		SessionID: token,
	})
	return true, msgQueryAuthorized
}

// EnableEncryption enables field encryption for a resource and records the
// key access in the audit trail.
func (m *Manager) EnableEncryption(actor, resource, password string, schema vault.Schema) bool {
	ok := m.vault.EnableEncryption(resource, password, schema)
	m.audit.Log(audit.Record{
		Type:     audit.EventEncryptionKeyAccess,
		User:     actor,
		Resource: resource,
		Success:  ok,
		Details:  map[string]any{"action": "enable"},
	})
	return ok
}

// RotateKey rotates a resource key and records the key access. Existing
// ciphertexts are not re-encrypted.
func (m *Manager) RotateKey(actor, resource, newPassword string) bool {
	ok := m.vault.RotateKey(resource, newPassword)
	m.audit.Log(audit.Record{
		Type:     audit.EventEncryptionKeyAccess,
		User:     actor,
		Resource: resource,
		Success:  ok,
		Details:  map[string]any{"action": "rotate"},
	})
	return ok
}
