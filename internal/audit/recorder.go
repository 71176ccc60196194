package audit

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/ncastellanos/inventory-service/internal/model"
)

// Entry is the input for one audit record. Old/new values are arbitrary
// snapshots and get marshalled to JSON by the recorder.
type Entry struct {
	TableName string
	RecordID  string
	Action    model.AuditAction
	OldValues interface{}
	NewValues interface{}
	UserID    *string
}

// Recorder appends immutable audit entries. Record is best-effort: failures
// are logged by the implementation and never propagated to the caller's
// primary operation. Mutations that need the audit write inside their own
// transaction use RecordTx instead, where a failure aborts the transaction.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
	RecordTx(ctx context.Context, tx *sqlx.Tx, entry Entry) error
	FindByRecord(ctx context.Context, tableName, recordID string) ([]model.AuditLog, error)
}
