package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/newsagent/internal/models"
)

// RecipientRepository stores the error-notification address list.
type RecipientRepository struct {
	db *sqlx.DB
}

func NewRecipientRepository(db *sqlx.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// ActiveEmails returns the addresses to notify. Fetched at send time so list
// changes take effect without a restart.
func (r *RecipientRepository) ActiveEmails(ctx context.Context) ([]string, error) {
	var emails []string
	query := `SELECT email FROM email_recipients WHERE is_active = true ORDER BY email`

	if err := r.db.SelectContext(ctx, &emails, query); err != nil {
		return nil, fmt.Errorf("list active recipients: %w", err)
	}
	return emails, nil
}

func (r *RecipientRepository) Create(ctx context.Context, recipient *models.EmailRecipient) error {
	if recipient.ID == "" {
		recipient.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_recipients (id, email, is_active) VALUES ($1, $2, $3)`,
		recipient.ID, recipient.Email, recipient.IsActive,
	)
	if err != nil {
		return fmt.Errorf("insert recipient: %w", err)
	}
	return nil
}

func (r *RecipientRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM email_recipients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recipient: %w", err)
	}
	return requireRow(res)
}
