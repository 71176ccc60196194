package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ncastellanos/inventory-service/internal/audit"
	"github.com/ncastellanos/inventory-service/internal/model"
	"github.com/ncastellanos/inventory-service/pkg/logger"
	"go.uber.org/zap"
)

const insertQuery = `
    INSERT INTO audit_logs (
        id, table_name, record_id, action, old_values, new_values, user_id, created_at
    )
    VALUES (
        :id, :table_name, :record_id, :action, :old_values, :new_values, :user_id, :created_at
    )
`

type PGRecorder struct {
	DB     *sqlx.DB
	logger logger.ZapLogger
}

func NewPGRecorder(db *sqlx.DB, log logger.ZapLogger) *PGRecorder {
	return &PGRecorder{DB: db, logger: log}
}

func (r *PGRecorder) Record(ctx context.Context, entry audit.Entry) {
	row, err := buildRow(entry)
	if err != nil {
		r.logger.Error("failed to build audit row",
			zap.String("table", entry.TableName),
			zap.String("record_id", entry.RecordID),
			zap.Error(err),
		)
		return
	}

	if _, err := r.DB.NamedExecContext(ctx, insertQuery, row); err != nil {
		// Best-effort path: audit failures must not fail the primary operation.
		r.logger.Error("failed to write audit log",
			zap.String("table", entry.TableName),
			zap.String("record_id", entry.RecordID),
			zap.Error(err),
		)
	}
}

func (r *PGRecorder) RecordTx(ctx context.Context, tx *sqlx.Tx, entry audit.Entry) error {
	row, err := buildRow(entry)
	if err != nil {
		return err
	}
	_, err = tx.NamedExecContext(ctx, insertQuery, row)
	return err
}

func (r *PGRecorder) FindByRecord(ctx context.Context, tableName, recordID string) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	query := `
        SELECT * FROM audit_logs
        WHERE table_name = $1 AND record_id = $2
        ORDER BY created_at DESC
    `
	err := r.DB.SelectContext(ctx, &logs, query, tableName, recordID)
	return logs, err
}

func buildRow(entry audit.Entry) (*model.AuditLog, error) {
	row := &model.AuditLog{
		ID:        uuid.New().String(),
		TableName: entry.TableName,
		RecordID:  entry.RecordID,
		Action:    entry.Action,
		UserID:    entry.UserID,
		CreatedAt: time.Now(),
	}

	if entry.OldValues != nil {
		data, err := json.Marshal(entry.OldValues)
		if err != nil {
			return nil, err
		}
		row.OldValues = data
	}
	if entry.NewValues != nil {
		data, err := json.Marshal(entry.NewValues)
		if err != nil {
			return nil, err
		}
		row.NewValues = data
	}

	return row, nil
}
