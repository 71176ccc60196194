package model

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
	AuditActionRead   AuditAction = "READ"
)

// AuditLog is one immutable entry in the audit trail, keyed by
// (table_name, record_id). Old/new snapshots are stored as JSONB.
type AuditLog struct {
	ID        string          `db:"id" json:"id"`
	TableName string          `db:"table_name" json:"table_name"`
	RecordID  string          `db:"record_id" json:"record_id"`
	Action    AuditAction     `db:"action" json:"action"`
	OldValues json.RawMessage `db:"old_values" json:"old_values"`
	NewValues json.RawMessage `db:"new_values" json:"new_values"`
	UserID    *string         `db:"user_id" json:"user_id"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
