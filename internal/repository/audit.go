package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/voicegate/voicegate/internal/models"
)

// PostgresAuditRepository appends audit events to PostgreSQL.
// The table is append-only; nothing updates or deletes rows.
type PostgresAuditRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuditRepository creates an audit repository using the provided
// *sql.DB.
func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{DB: db}
}

// Emit appends one audit event.
func (r *PostgresAuditRepository) Emit(ctx context.Context, event models.AuditEvent) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO audit_events (session_id, user_id, kind, stage, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.SessionID, event.UserID, string(event.Kind), int(event.Stage), event.Detail, event.At)
	if err != nil {
		return fmt.Errorf("Emit audit event: %w", err)
	}
	return nil
}
