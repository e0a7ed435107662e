package access

import "time"

// Permission enumerates database permissions.
type Permission string

// Database permissions. PermAll is a wildcard honoured on direct privileges.
const (
	PermSelect   Permission = "SELECT"
	PermInsert   Permission = "INSERT"
	PermUpdate   Permission = "UPDATE"
	PermDelete   Permission = "DELETE"
	PermCreate   Permission = "CREATE"
	PermDrop     Permission = "DROP"
	PermAlter    Permission = "ALTER"
	PermIndex    Permission = "INDEX"
	PermConnect  Permission = "CONNECT"
	PermResource Permission = "RESOURCE"
	PermDBA      Permission = "DBA"
	PermAll      Permission = "ALL"
)

// AllPermissions lists every concrete permission plus the wildcard.
func AllPermissions() []Permission {
	return []Permission{
		PermSelect, PermInsert, PermUpdate, PermDelete, PermCreate, PermDrop,
		PermAlter, PermIndex, PermConnect, PermResource, PermDBA, PermAll,
	}
}

// ResourceType classifies database resources.
type ResourceType string

// Database resource types.
const (
	ResourceDatabase  ResourceType = "DATABASE"
	ResourceTable     ResourceType = "TABLE"
	ResourceView      ResourceType = "VIEW"
	ResourceIndex     ResourceType = "INDEX"
	ResourceFunction  ResourceType = "FUNCTION"
	ResourceProcedure ResourceType = "PROCEDURE"
)

// User is a database principal. Users are never physically deleted in this
// subsystem; deactivation flips IsActive.
type User struct {
	Username            string
	PasswordHash        string
	Salt                string
	Roles               []string
	IsActive            bool
	FailedLoginAttempts int
	LastLogin           time.Time
	CreatedAt           time.Time
}

// Role bundles permissions and may inherit from other roles through
// GrantedRoles.
type Role struct {
	Name         string
	Permissions  []Permission
	GrantedRoles []string
	IsSystemRole bool
}

// Privilege is a direct grant of permissions to a principal on one resource,
// independent of role membership. The privilege list is append-only.
type Privilege struct {
	Principal    string
	ResourceType ResourceType
	ResourceName string
	Permissions  []Permission
	GrantedBy    string
	GrantedAt    time.Time
}

// session is the server-held state behind a token. Roles are a snapshot
// taken at login; role changes after login do not affect a live session.
type session struct {
	username     string
	loginTime    time.Time
	lastActivity time.Time
	ipAddress    string
	roles        []string
}

// SessionInfo is the copy of session state returned to callers.
type SessionInfo struct {
	Username     string    `json:"username"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	IPAddress    string    `json:"ip_address,omitempty"`
	Roles        []string  `json:"roles"`
}

// Stats summarises the registries.
type Stats struct {
	TotalUsers          int            `json:"total_users"`
	ActiveUsers         int            `json:"active_users"`
	TotalRoles          int            `json:"total_roles"`
	TotalPrivileges     int            `json:"total_privileges"`
	ActiveSessions      int            `json:"active_sessions"`
	RoleDistribution    map[string]int `json:"role_distribution,omitempty"`
	FailedLoginAttempts map[string]int `json:"failed_login_attempts,omitempty"`
}
