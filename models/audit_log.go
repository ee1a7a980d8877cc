package models

import "time"

// AuditLog records an administrative action against the virtual game
// configuration (overriding crash values, regenerating the series, resetting
// the index).
type AuditLog struct {
	ID        int64          `db:"id"`
	Action    string         `db:"action"`
	Details   map[string]any `db:"details"`
	Actor     string         `db:"actor"`
	CreatedAt time.Time      `db:"created_at"`
}
