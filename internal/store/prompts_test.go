package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
)

func TestLoadActiveBundle(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPromptRepository(db, logger.NewNopLogger())

	rows := sqlmock.NewRows([]string{"name", "content"})
	for _, name := range models.RequiredPromptNames {
		rows.AddRow(name, "prompt body for "+name)
	}

	mock.ExpectQuery("SELECT name, content FROM prompts").
		WillReturnRows(rows)

	bundle, err := repo.LoadActiveBundle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "prompt body for summary_system", bundle.SummarySystem)
	assert.Equal(t, "prompt body for translation_user", bundle.TranslationUser)
}

func TestLoadActiveBundleMissingPrompt(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPromptRepository(db, logger.NewNopLogger())

	rows := sqlmock.NewRows([]string{"name", "content"})
	for _, name := range models.RequiredPromptNames {
		if name == "seo_user" {
			continue
		}
		rows.AddRow(name, "prompt body")
	}

	mock.ExpectQuery("SELECT name, content FROM prompts").
		WillReturnRows(rows)

	_, err := repo.LoadActiveBundle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seo_user")
}

func TestPromptCreateKeepsSemanticVersion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPromptRepository(db, logger.NewNopLogger())

	mock.ExpectExec("INSERT INTO prompts").
		WithArgs(sqlmock.AnyArg(), "summary_system", "You are an editor.",
			models.PromptStatusDraft, "1.2.0", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Prompt{
		Name:    "summary_system",
		Content: "You are an editor.",
		Version: "1.2.0",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromptActivateArchivesPrevious(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPromptRepository(db, logger.NewNopLogger())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name FROM prompts").
		WithArgs("p-2").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("summary_system"))
	mock.ExpectExec("UPDATE prompts SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE prompts SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Activate(context.Background(), "p-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
