package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/newsagent/internal/models"
)

// CategoryRepository stores the name -> external id mapping the pipeline
// resolves predicted categories against.
type CategoryRepository struct {
	db *sqlx.DB
}

func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Mapping returns the full name -> external_id map, loaded once per
// pipeline run.
func (r *CategoryRepository) Mapping(ctx context.Context) (map[string]string, error) {
	var categories []models.Category
	query := `SELECT id, name, external_id FROM categories`

	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("load category mapping: %w", err)
	}

	mapping := make(map[string]string, len(categories))
	for _, c := range categories {
		if c.Name != "" && c.ExternalID != "" {
			mapping[c.Name] = c.ExternalID
		}
	}
	return mapping, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, external_id) VALUES ($1, $2, $3)`,
		category.ID, category.Name, category.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireRow(res)
}
