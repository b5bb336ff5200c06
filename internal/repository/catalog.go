// Package repository provides PostgreSQL persistence for the phrase
// catalog, voice signatures, and the audit log.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/voicegate/voicegate/internal/models"
)

// PostgresPhraseCatalog implements phrase and usage-record operations
// against a PostgreSQL database.
type PostgresPhraseCatalog struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresPhraseCatalog creates a catalog using the provided *sql.DB.
// db must be a valid connection to a PostgreSQL instance.
func NewPostgresPhraseCatalog(db *sql.DB) *PostgresPhraseCatalog {
	return &PostgresPhraseCatalog{DB: db}
}

// EligiblePhrases returns all phrases of the given difficulty whose ids are
// not in the exclusion set.
//
//	ctx:        context for cancellation and deadlines
//	difficulty: phrase difficulty to select
//	exclude:    phrase ids ineligible for selection
//
// Returns a slice of models.Phrase or an error if the query or scanning fails.
func (c *PostgresPhraseCatalog) EligiblePhrases(ctx context.Context, difficulty models.Difficulty, exclude []string) ([]models.Phrase, error) {
	rows, err := c.DB.QueryContext(ctx, `
		SELECT id, text, difficulty, language FROM phrases
		WHERE difficulty = $1 AND NOT (id = ANY($2))
	`, string(difficulty), pq.Array(exclude))
	if err != nil {
		return nil, fmt.Errorf("EligiblePhrases: %w", err)
	}
	defer rows.Close()

	var phrases []models.Phrase
	for rows.Next() {
		var p models.Phrase
		if err := rows.Scan(&p.ID, &p.Text, &p.Difficulty, &p.Language); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		phrases = append(phrases, p)
	}
	return phrases, rows.Err()
}

// RecentPhraseIDs returns the phrase ids from the user's most recent usage
// records, newest first, limited to window entries. A zero window returns
// no exclusions.
func (c *PostgresPhraseCatalog) RecentPhraseIDs(ctx context.Context, userID string, window int) ([]string, error) {
	if window <= 0 {
		return nil, nil
	}
	rows, err := c.DB.QueryContext(ctx, `
		SELECT phrase_id FROM usage_records
		WHERE user_id = $1
		ORDER BY used_at DESC, id DESC
		LIMIT $2
	`, userID, window)
	if err != nil {
		return nil, fmt.Errorf("RecentPhraseIDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordUsage appends a usage record for the phrase. Usage records are
// append-only; nothing ever mutates or deletes them.
func (c *PostgresPhraseCatalog) RecordUsage(ctx context.Context, phraseID, userID string, purpose models.UsagePurpose) error {
	_, err := c.DB.ExecContext(ctx, `
		INSERT INTO usage_records (phrase_id, user_id, purpose, used_at)
		VALUES ($1, $2, $3, $4)
	`, phraseID, userID, string(purpose), time.Now())
	if err != nil {
		return fmt.Errorf("RecordUsage: %w", err)
	}
	return nil
}
