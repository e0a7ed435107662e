// Package access implements authentication, role-based authorization with
// role chaining, and session lifecycle management over in-memory registries.
package access

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/dbguard/internal/secutil"
)

// Defaults for session and lockout handling.
const (
	DefaultSessionTTL       = 8 * time.Hour
	DefaultLockoutThreshold = 5
	DefaultLockoutWindow    = time.Hour
)

// Options tunes session expiry and brute-force lockout. The Now hook exists
// so expiry and lockout windows can be exercised in tests.
type Options struct {
	SessionTTL       time.Duration
	LockoutThreshold int
	LockoutWindow    time.Duration
	Now              func() time.Time
}

// Service guards all mutable access-control state behind one mutex so that
// authentication and permission checks observe a single consistent snapshot
// of users, roles, privileges and sessions. A deliberate throughput ceiling:
// unrelated operations serialize on the same lock.
type Service struct {
	logger    *slog.Logger
	hasher    *secutil.Hasher
	validator *validator.Validate

	sessionTTL       time.Duration
	lockoutThreshold int
	lockoutWindow    time.Duration
	now              func() time.Time

	mu           sync.Mutex
	users        map[string]*User
	roles        map[string]*Role
	privileges   []Privilege
	sessions     map[string]*session
	failedLogins map[string][]time.Time
}

// NewService constructs the access-control service seeded with the DBA,
// READ_ONLY and DEVELOPER system roles.
func NewService(logger *slog.Logger, hasher *secutil.Hasher, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.LockoutThreshold <= 0 {
		opts.LockoutThreshold = DefaultLockoutThreshold
	}
	if opts.LockoutWindow <= 0 {
		opts.LockoutWindow = DefaultLockoutWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Service{
		logger:           logger,
		hasher:           hasher,
		validator:        validator.New(),
		sessionTTL:       opts.SessionTTL,
		lockoutThreshold: opts.LockoutThreshold,
		lockoutWindow:    opts.LockoutWindow,
		now:              opts.Now,
		users:            make(map[string]*User),
		roles:            make(map[string]*Role),
		sessions:         make(map[string]*session),
		failedLogins:     make(map[string][]time.Time),
	}
	s.seedSystemRoles()
	return s
}

func (s *Service) seedSystemRoles() {
	s.roles["DBA"] = &Role{
		Name:         "DBA",
		Permissions:  AllPermissions(),
		IsSystemRole: true,
	}
	s.roles["READ_ONLY"] = &Role{
		Name:         "READ_ONLY",
		Permissions:  []Permission{PermSelect},
		IsSystemRole: true,
	}
	s.roles["DEVELOPER"] = &Role{
		Name:         "DEVELOPER",
		Permissions:  []Permission{PermSelect, PermInsert, PermUpdate, PermDelete},
		IsSystemRole: true,
	}
}

type createUserInput struct {
	Username string `validate:"required,max=64,excludesall=0x20"`
	Password string `validate:"required"`
}

// CreateUser registers a new active user. It returns false without mutating
// anything when the input is invalid, the username is taken, or any named
// role does not exist.
func (s *Service) CreateUser(username, password string, roles []string) bool {
	if err := s.validator.Struct(createUserInput{Username: username, Password: password}); err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return false
	}
	for _, role := range roles {
		if _, ok := s.roles[role]; !ok {
			return false
		}
	}

	hash, salt, err := s.hasher.HashPassword(password, "")
	if err != nil {
		if s.logger != nil {
			s.logger.Error("hash password", slog.Any("error", err))
		}
		return false
	}

	s.users[username] = &User{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Roles:        append([]string(nil), roles...),
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	return true
}

type createRoleInput struct {
	Name string `validate:"required,max=64,excludesall=0x20"`
}

// CreateRole registers a new role. Granted roles must already exist; forward
// references are rejected.
func (s *Service) CreateRole(name string, permissions []Permission, grantedRoles []string) bool {
	if err := s.validator.Struct(createRoleInput{Name: name}); err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.roles[name]; exists {
		return false
	}
	for _, granted := range grantedRoles {
		if _, ok := s.roles[granted]; !ok {
			return false
		}
	}

	s.roles[name] = &Role{
		Name:         name,
		Permissions:  append([]Permission(nil), permissions...),
		GrantedRoles: append([]string(nil), grantedRoles...),
	}
	return true
}

// GrantPrivilege appends a direct grant for a principal on one resource.
// The privilege list is append-only; there is no revoke.
func (s *Service) GrantPrivilege(principal string, resourceType ResourceType, resourceName string, permissions []Permission, grantedBy string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.privileges = append(s.privileges, Privilege{
		Principal:    principal,
		ResourceType: resourceType,
		ResourceName: resourceName,
		Permissions:  append([]Permission(nil), permissions...),
		GrantedBy:    grantedBy,
		GrantedAt:    s.now(),
	})
}

// Authenticate validates credentials and issues a session token. Failed
// attempts against unknown or inactive usernames are still recorded, so an
// attacker probing for valid names gets the same bookkeeping as one probing
// passwords.
func (s *Service) Authenticate(username, password, ipAddress string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	user, exists := s.users[username]
	if !exists || !user.IsActive {
		s.recordFailedLogin(username, now)
		return "", false
	}

	if !s.hasher.VerifyPassword(password, user.PasswordHash, user.Salt) {
		s.recordFailedLogin(username, now)
		user.FailedLoginAttempts++
		return "", false
	}

	// Lockout denies even a correct password while the rolling window holds
	// more than the threshold of failures.
	recent := 0
	for _, at := range s.failedLogins[username] {
		if now.Sub(at) < s.lockoutWindow {
			recent++
		}
	}
	if recent > s.lockoutThreshold {
		return "", false
	}

	token, err := s.issueToken()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("issue session token", slog.Any("error", err))
		}
		return "", false
	}

	s.sessions[token] = &session{
		username:     username,
		loginTime:    now,
		lastActivity: now,
		ipAddress:    ipAddress,
		roles:        append([]string(nil), user.Roles...),
	}
	user.LastLogin = now
	user.FailedLoginAttempts = 0
	return token, true
}

// issueToken generates a token that does not collide with a live session.
// Collisions are cryptographically negligible; the retry loop upholds the
// uniqueness invariant regardless. Caller holds the lock.
func (s *Service) issueToken() (string, error) {
	for {
		token, err := secutil.GenerateSessionToken()
		if err != nil {
			return "", err
		}
		if _, taken := s.sessions[token]; !taken {
			return token, nil
		}
	}
}

// recordFailedLogin appends a failure timestamp and prunes entries older
// than the lockout window. Caller holds the lock.
func (s *Service) recordFailedLogin(username string, now time.Time) {
	attempts := append(s.failedLogins[username], now)
	kept := attempts[:0]
	for _, at := range attempts {
		if now.Sub(at) < s.lockoutWindow {
			kept = append(kept, at)
		}
	}
	s.failedLogins[username] = kept
}

// VerifySession checks a token, lazily evicting it once the idle gap exceeds
// the session timeout. A successful check renews the sliding window and
// returns a copy of the session state.
func (s *Service) VerifySession(token string) (SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifySession(token)
}

// verifySession implements VerifySession. Caller holds the lock.
func (s *Service) verifySession(token string) (SessionInfo, bool) {
	sess, ok := s.sessions[token]
	if !ok {
		return SessionInfo{}, false
	}
	now := s.now()
	if now.Sub(sess.lastActivity) > s.sessionTTL {
		delete(s.sessions, token)
		return SessionInfo{}, false
	}
	sess.lastActivity = now
	return SessionInfo{
		Username:     sess.username,
		LoginTime:    sess.loginTime,
		LastActivity: sess.lastActivity,
		IPAddress:    sess.ipAddress,
		Roles:        append([]string(nil), sess.roles...),
	}, true
}

// TerminateSession removes the session if present.
func (s *Service) TerminateSession(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

// DeactivateUser marks a user inactive. Existing sessions are untouched;
// users are never physically deleted.
func (s *Service) DeactivateUser(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return false
	}
	user.IsActive = false
	return true
}

// CheckPermission reports whether the session behind token holds permission
// on the named resource. Resolution order: direct privileges first (the ALL
// wildcard matches any permission), then the session's role snapshot with a
// depth-first walk over granted roles. Unknown or expired tokens deny.
func (s *Service) CheckPermission(token string, permission Permission, resourceType ResourceType, resourceName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.verifySession(token)
	if !ok {
		return false
	}

	for _, priv := range s.privileges {
		if priv.Principal != sess.Username || priv.ResourceType != resourceType || priv.ResourceName != resourceName {
			continue
		}
		for _, granted := range priv.Permissions {
			if granted == permission || granted == PermAll {
				return true
			}
		}
	}

	visited := make(map[string]struct{})
	for _, roleName := range sess.Roles {
		if _, held := s.effectiveRolePermissions(roleName, visited)[permission]; held {
			return true
		}
	}
	return false
}

// effectiveRolePermissions aggregates a role's own permissions with those of
// its granted roles, depth first. The visited set makes role cycles
// terminate: a revisited role contributes nothing new. Caller holds the
// lock. Both CheckPermission and UserPermissions resolve through this
// routine so the two read paths cannot drift apart.
func (s *Service) effectiveRolePermissions(roleName string, visited map[string]struct{}) map[Permission]struct{} {
	result := make(map[Permission]struct{})
	if _, seen := visited[roleName]; seen {
		return result
	}
	visited[roleName] = struct{}{}

	role, ok := s.roles[roleName]
	if !ok {
		return result
	}
	for _, perm := range role.Permissions {
		result[perm] = struct{}{}
	}
	for _, granted := range role.GrantedRoles {
		for perm := range s.effectiveRolePermissions(granted, visited) {
			result[perm] = struct{}{}
		}
	}
	return result
}

// UserPermissions aggregates the session's direct privileges (keyed
// "TYPE:resource") and role-derived permissions (keyed "ROLE:name") as an
// introspection aid. It shares effectiveRolePermissions with CheckPermission.
func (s *Service) UserPermissions(token string) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.verifySession(token)
	if !ok {
		return map[string][]string{}
	}

	result := make(map[string][]string)
	for _, priv := range s.privileges {
		if priv.Principal != sess.Username {
			continue
		}
		key := fmt.Sprintf("%s:%s", priv.ResourceType, priv.ResourceName)
		for _, perm := range priv.Permissions {
			result[key] = append(result[key], string(perm))
		}
	}
	for _, roleName := range sess.Roles {
		perms := s.effectiveRolePermissions(roleName, make(map[string]struct{}))
		key := "ROLE:" + roleName
		for perm := range perms {
			result[key] = append(result[key], string(perm))
		}
	}
	return result
}

// Statistics summarises the registries, including per-user failure counts
// still inside the lockout window.
func (s *Service) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := Stats{
		TotalUsers:          len(s.users),
		TotalRoles:          len(s.roles),
		TotalPrivileges:     len(s.privileges),
		ActiveSessions:      len(s.sessions),
		RoleDistribution:    make(map[string]int),
		FailedLoginAttempts: make(map[string]int),
	}
	for _, user := range s.users {
		if user.IsActive {
			stats.ActiveUsers++
		}
		for _, role := range user.Roles {
			stats.RoleDistribution[role]++
		}
	}
	for username, attempts := range s.failedLogins {
		recent := 0
		for _, at := range attempts {
			if now.Sub(at) < s.lockoutWindow {
				recent++
			}
		}
		if recent > 0 {
			stats.FailedLoginAttempts[username] = recent
		}
	}
	return stats
}
