package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/voicegate/voicegate/internal/models"
)

// PostgresSignatureRepository persists voice signatures in PostgreSQL.
type PostgresSignatureRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresSignatureRepository creates a signature repository using the
// provided *sql.DB.
func NewPostgresSignatureRepository(db *sql.DB) *PostgresSignatureRepository {
	return &PostgresSignatureRepository{DB: db}
}

// Load returns the voice signature for the given user. found is false when
// the user has no stored signature.
func (r *PostgresSignatureRepository) Load(ctx context.Context, userID string) (models.VoiceSignature, bool, error) {
	sig := models.VoiceSignature{UserID: userID}
	var embedding pq.Float64Array
	err := r.DB.QueryRowContext(ctx, `
		SELECT embedding, quality, created_at FROM voice_signatures WHERE user_id = $1
	`, userID).Scan(&embedding, &sig.QualityScore, &sig.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VoiceSignature{}, false, nil
	}
	if err != nil {
		return models.VoiceSignature{}, false, fmt.Errorf("Load signature: %w", err)
	}
	sig.Embedding = []float64(embedding)
	return sig, true, nil
}

// Store replaces any prior signature for the user. The replacement is a
// single upsert statement, so an old and a new signature never coexist
// mid-transaction.
func (r *PostgresSignatureRepository) Store(ctx context.Context, sig models.VoiceSignature) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO voice_signatures (user_id, embedding, quality, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			quality = EXCLUDED.quality,
			created_at = EXCLUDED.created_at
	`, sig.UserID, pq.Array(sig.Embedding), sig.QualityScore, sig.CreatedAt)
	if err != nil {
		return fmt.Errorf("Store signature: %w", err)
	}
	return nil
}
