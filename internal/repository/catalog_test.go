package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicegate/voicegate/internal/models"
)

func TestEligiblePhrases(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	exclude := []string{"p-1", "p-2"}
	rows := sqlmock.NewRows([]string{"id", "text", "difficulty", "language"}).
		AddRow("p-3", "some literary phrase", "medium", "en").
		AddRow("p-4", "another literary phrase", "medium", "en")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, text, difficulty, language FROM phrases")).
		WithArgs("medium", pq.Array(exclude)).
		WillReturnRows(rows)

	catalog := NewPostgresPhraseCatalog(db)
	phrases, err := catalog.EligiblePhrases(context.Background(), models.Medium, exclude)
	require.NoError(t, err)

	require.Len(t, phrases, 2)
	assert.Equal(t, "p-3", phrases[0].ID)
	assert.Equal(t, models.Medium, phrases[0].Difficulty)
	assert.Equal(t, "another literary phrase", phrases[1].Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEligiblePhrases_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, text, difficulty, language FROM phrases")).
		WillReturnError(errors.New("connection reset"))

	catalog := NewPostgresPhraseCatalog(db)
	_, err = catalog.EligiblePhrases(context.Background(), models.Easy, nil)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentPhraseIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"phrase_id"}).
		AddRow("p-9").
		AddRow("p-8")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT phrase_id FROM usage_records")).
		WithArgs("u1", 50).
		WillReturnRows(rows)

	catalog := NewPostgresPhraseCatalog(db)
	ids, err := catalog.RecentPhraseIDs(context.Background(), "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-9", "p-8"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentPhraseIDs_ZeroWindowSkipsQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	catalog := NewPostgresPhraseCatalog(db)
	ids, err := catalog.RecentPhraseIDs(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Nil(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUsage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO usage_records")).
		WithArgs("p-1", "u1", "verification", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	catalog := NewPostgresPhraseCatalog(db)
	err = catalog.RecordUsage(context.Background(), "p-1", "u1", models.PurposeVerification)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUsage_ExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO usage_records")).
		WillReturnError(errors.New("disk full"))

	catalog := NewPostgresPhraseCatalog(db)
	err = catalog.RecordUsage(context.Background(), "p-1", "u1", models.PurposeEnrollment)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
