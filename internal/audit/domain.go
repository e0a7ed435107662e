package audit

import "time"

// EventType classifies an audit event.
type EventType string

// Audit event types.
const (
	EventLogin               EventType = "LOGIN"
	EventLogout              EventType = "LOGOUT"
	EventSelect              EventType = "SELECT"
	EventInsert              EventType = "INSERT"
	EventUpdate              EventType = "UPDATE"
	EventDelete              EventType = "DELETE"
	EventCreate              EventType = "CREATE"
	EventDrop                EventType = "DROP"
	EventAlter               EventType = "ALTER"
	EventFailedLogin         EventType = "FAILED_LOGIN"
	EventPermissionDenied    EventType = "PERMISSION_DENIED"
	EventEncryptionKeyAccess EventType = "ENCRYPTION_KEY_ACCESS"
	EventDataExport          EventType = "DATA_EXPORT"
)

// Entry is an immutable audit record. Entries are never updated or deleted
// once appended; only capacity-triggered eviction removes them.
type Entry struct {
	EventID   string         `json:"event_id"`
	Type      EventType      `json:"event_type"`
	User      string         `json:"user"`
	Resource  string         `json:"resource"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Details   map[string]any `json:"details,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// Record captures the caller-supplied portion of an audit event. The service
// assigns the event ID and timestamp on append.
type Record struct {
	Type      EventType
	User      string
	Resource  string
	Success   bool
	Details   map[string]any
	IPAddress string
	SessionID string
}

// Filter narrows a log query. Zero values match everything.
type Filter struct {
	User  string
	Type  EventType
	From  time.Time
	Until time.Time
}

// Stats summarises the in-memory log.
type Stats struct {
	TotalEvents     int            `json:"total_events"`
	EventTypeCounts map[string]int `json:"event_type_counts,omitempty"`
	UserActivity    map[string]int `json:"user_activity,omitempty"`
	SuccessRate     float64        `json:"overall_success_rate"`
	Oldest          time.Time      `json:"oldest,omitzero"`
	Newest          time.Time      `json:"newest,omitzero"`
}
