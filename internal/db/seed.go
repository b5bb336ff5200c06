package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/voicegate/voicegate/internal/models"
	"go.uber.org/zap"
)

// SeedPhrases loads the phrase catalog from a JSON file. Existing phrases
// are left untouched, so re-running a seed is harmless.
func SeedPhrases(db *sql.DB, path string, log *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read phrase file: %w", err)
	}

	var phrases []models.Phrase
	if err := json.Unmarshal(data, &phrases); err != nil {
		return fmt.Errorf("parse phrase file: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, p := range phrases {
		res, err := tx.Exec(`
			INSERT INTO phrases (id, text, difficulty, language)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Text, p.Difficulty, p.Language)
		if err != nil {
			return fmt.Errorf("insert phrase %s: %w", p.ID, err)
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Info("phrase catalog seeded",
		zap.Int("total", len(phrases)),
		zap.Int("inserted", inserted),
	)
	return nil
}
