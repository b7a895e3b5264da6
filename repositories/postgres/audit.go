package postgres

import (
	"database/sql"

	"github.com/captainzonks/GeneGnome/models"
)

// severity derives from the event type; callers never set it directly
func severityFor(eventType string) string {
	switch eventType {
	case "error":
		return "error"
	case "security", "unsupported_compression":
		return "critical"
	default:
		return "info"
	}
}

// AppendAudit inserts one audit row. Insert-only; there is no update
// or delete path anywhere in this package.
func AppendAudit(db *sql.DB, event *models.AuditEvent) error {
	_, err := db.Exec(`INSERT INTO audit
		(event_type, user_id, session_id, ip_address, action, result, details, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.EventType, event.UserID, event.SessionID, event.IPAddress,
		event.Action, event.Result, event.Details, severityFor(event.EventType))
	return err
}
