package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xeniko/shop-admin/internal/audit"
)

const appendAuditSQL = `INSERT INTO audit_logs (entity, entity_id, action, metadata, performed_by)
	VALUES ($1, $2, $3, $4, $5)`

var _ audit.Recorder = (*AuditRecorder)(nil)

// AuditRecorder appends audit entries to the audit_logs table. Rows are
// never updated or deleted.
type AuditRecorder struct {
	pool *pgxpool.Pool
}

// NewAuditRecorder returns an AuditRecorder that uses the given pool.
func NewAuditRecorder(pool *pgxpool.Pool) *AuditRecorder {
	return &AuditRecorder{pool: pool}
}

// Append inserts one audit row. Metadata is serialized to JSON for the
// JSONB column; a nil actor becomes a NULL performed_by.
func (r *AuditRecorder) Append(ctx context.Context, e audit.Entry) error {
	var metadataJSON []byte
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return errors.Wrap(err, "marshaling audit metadata")
		}
		metadataJSON = b
	}

	var actor *string
	if e.ActorID != "" {
		actor = &e.ActorID
	}

	if _, err := r.pool.Exec(ctx, appendAuditSQL,
		e.Entity, e.EntityID, e.Action, metadataJSON, actor,
	); err != nil {
		return errors.Wrap(err, "appending audit entry")
	}
	return nil
}
