package security

import (
	"fmt"

	"github.com/odyssey-erp/dbguard/internal/access"
	"github.com/odyssey-erp/dbguard/internal/audit"
)

// queryVerbs lists the recognized verb keys in resolution order.
var queryVerbs = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER"}

// classifyQuery determines the verb of a structured query description.
// Queries carrying none of the recognized verb keys classify as UNKNOWN.
func classifyQuery(query map[string]any) string {
	for _, verb := range queryVerbs {
		if _, ok := query[verb]; ok {
			return verb
		}
	}
	return "UNKNOWN"
}

// requiredPermission maps a query verb to the permission it needs and the
// audit event recorded on success. UNKNOWN verbs require SELECT-equivalent
// authorization.
func requiredPermission(verb string) (access.Permission, audit.EventType) {
	switch verb {
	case "SELECT":
		return access.PermSelect, audit.EventSelect
	case "INSERT":
		return access.PermInsert, audit.EventInsert
	case "UPDATE":
		return access.PermUpdate, audit.EventUpdate
	case "DELETE":
		return access.PermDelete, audit.EventDelete
	case "CREATE":
		return access.PermCreate, audit.EventCreate
	case "DROP":
		return access.PermDrop, audit.EventDrop
	case "ALTER":
		return access.PermAlter, audit.EventAlter
	default:
		return access.PermSelect, audit.EventSelect
	}
}

// queryResource extracts the target resource from the FROM or TABLE key,
// defaulting to "unknown".
func queryResource(query map[string]any) string {
	for _, key := range []string{"FROM", "TABLE"} {
		if value, ok := query[key]; ok {
			if name, isString := value.(string); isString {
				return name
			}
			return fmt.Sprintf("%v", value)
		}
	}
	return "unknown"
}
