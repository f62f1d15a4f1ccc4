package database

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Audit resource and action names for store writes, bus traffic, API reads
// and file reads. Only bus produce and consume events are recorded by the
// current callers; the other names are not written anywhere.
const (
	ResourceDB            = "db"
	ResourceKafka         = "kafka"
	ResourceEmailQueryAPI = "email_query_api"
	ResourceFile          = "file"

	ActionInsert  = "insert"
	ActionUpdate  = "update"
	ActionProduce = "produce"
	ActionConsume = "consume"
	ActionRead    = "read"
)

// AuditRecorder appends action records to the audit trail. Recording is
// best-effort: a failed write is logged and never propagated to the
// caller's unit of work.
type AuditRecorder struct {
	store  *PostgresStore
	logger *zap.Logger
}

func NewAuditRecorder(store *PostgresStore, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{store: store, logger: logger}
}

// Record writes one audit entry. Content is serialized to JSON; a content
// that cannot be serialized is recorded as null.
func (r *AuditRecorder) Record(ctx context.Context, resource, action string, content any) {
	serialized, err := json.Marshal(content)
	if err != nil {
		r.logger.Warn("Failed to serialize audit content", zap.Error(err))
		serialized = nil
	}

	query := `INSERT INTO audit_log (resource, action, content) VALUES ($1, $2, $3)`
	if _, err := r.store.DB.ExecContext(ctx, query, resource, action, serialized); err != nil {
		r.logger.Warn("Failed to write audit log entry",
			zap.String("resource", resource),
			zap.String("action", action),
			zap.Error(err))
	}
}
