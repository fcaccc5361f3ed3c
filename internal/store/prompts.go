package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
)

// PromptRepository stores the versioned prompt templates. A partial unique
// index guarantees at most one active version per name.
type PromptRepository struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPromptRepository(db *sqlx.DB, log logger.Logger) *PromptRepository {
	return &PromptRepository{db: db, log: log}
}

// LoadActiveBundle fetches the active version of every required prompt and
// fails fast when any is missing.
func (r *PromptRepository) LoadActiveBundle(ctx context.Context) (*models.PromptBundle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, content FROM prompts
		WHERE name = ANY($1) AND status = $2
	`, pq.Array(models.RequiredPromptNames), models.PromptStatusActive)
	if err != nil {
		return nil, fmt.Errorf("query active prompts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	prompts := make(map[string]string, len(models.RequiredPromptNames))
	for rows.Next() {
		var name, content string
		if scanErr := rows.Scan(&name, &content); scanErr != nil {
			return nil, fmt.Errorf("scan prompt: %w", scanErr)
		}
		prompts[name] = content
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate prompts: %w", rowsErr)
	}

	bundle, err := models.BundleFromMap(prompts)
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

func (r *PromptRepository) Create(ctx context.Context, prompt *models.Prompt) error {
	if prompt.ID == "" {
		prompt.ID = uuid.New().String()
	}
	if prompt.Status == "" {
		prompt.Status = models.PromptStatusDraft
	}
	prompt.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prompts (id, name, content, status, version, input_variables, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, prompt.ID, prompt.Name, prompt.Content, prompt.Status, prompt.Version,
		pq.Array(prompt.InputVariables), prompt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert prompt: %w", err)
	}
	return nil
}

func (r *PromptRepository) GetByID(ctx context.Context, id string) (*models.Prompt, error) {
	var prompt models.Prompt
	var vars pq.StringArray

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, content, status, version, input_variables, updated_at
		FROM prompts WHERE id = $1
	`, id).Scan(&prompt.ID, &prompt.Name, &prompt.Content, &prompt.Status,
		&prompt.Version, &vars, &prompt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query prompt: %w", err)
	}

	prompt.InputVariables = vars
	return &prompt, nil
}

// Activate promotes one prompt version to active, archiving any previously
// active version of the same name in the same transaction.
func (r *PromptRepository) Activate(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	err = tx.QueryRowContext(ctx, `SELECT name FROM prompts WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query prompt name: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE prompts SET status = $1 WHERE name = $2 AND status = $3
	`, models.PromptStatusArchived, name, models.PromptStatusActive); err != nil {
		return fmt.Errorf("archive previous version: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE prompts SET status = $1, updated_at = $2 WHERE id = $3
	`, models.PromptStatusActive, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("activate prompt: %w", err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit activate: %w", commitErr)
	}
	return nil
}
