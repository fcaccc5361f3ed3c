package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
)

const articleColumns = `id, source_id, url, status, discovered_at, processed_at, final_output`

// ArticleRepository is the persistent memory of every URL the system has
// ever seen. The unique index on url absorbs discovery races.
type ArticleRepository struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewArticleRepository(db *sqlx.DB, log logger.Logger) *ArticleRepository {
	return &ArticleRepository{db: db, log: log}
}

// Insert creates a discovery record. Returns ErrDuplicateURL when the url
// already exists so the scheduler can skip silently.
var ErrDuplicateURL = errors.New("url already discovered")

func (r *ArticleRepository) Insert(ctx context.Context, article *models.Article) error {
	if article.ID == "" {
		article.ID = uuid.New().String()
	}
	if article.DiscoveredAt.IsZero() {
		article.DiscoveredAt = time.Now().UTC()
	}
	if article.Status == "" {
		article.Status = models.ArticleStatusQueued
	}

	query := `
		INSERT INTO articles (` + articleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		article.ID,
		article.SourceID,
		article.URL,
		article.Status,
		article.DiscoveredAt,
		article.ProcessedAt,
		article.FinalOutput,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateURL
	}
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// ExistingURLs answers the scheduler's batch dedup query: of the candidate
// URLs, which are already known?
func (r *ArticleRepository) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	if len(urls) == 0 {
		return map[string]bool{}, nil
	}

	var found []string
	query := `SELECT url FROM articles WHERE url = ANY($1)`

	if err := r.db.SelectContext(ctx, &found, query, pq.Array(urls)); err != nil {
		return nil, fmt.Errorf("query existing urls: %w", err)
	}

	existing := make(map[string]bool, len(found))
	for _, u := range found {
		existing[u] = true
	}
	return existing, nil
}

func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	var article models.Article
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`

	err := r.db.GetContext(ctx, &article, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query article: %w", err)
	}
	return &article, nil
}

// List returns articles ordered newest-first, optionally filtered by status.
func (r *ArticleRepository) List(ctx context.Context, status string, limit, offset int) ([]models.Article, error) {
	var articles []models.Article
	var err error

	if status != "" {
		query := `SELECT ` + articleColumns + ` FROM articles
		          WHERE status = $1 ORDER BY discovered_at DESC LIMIT $2 OFFSET $3`
		err = r.db.SelectContext(ctx, &articles, query, status, limit, offset)
	} else {
		query := `SELECT ` + articleColumns + ` FROM articles
		          ORDER BY discovered_at DESC LIMIT $1 OFFSET $2`
		err = r.db.SelectContext(ctx, &articles, query, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// UpdateStatus sets an editorial status on an article.
func (r *ArticleRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE articles SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update article status: %w", err)
	}
	return requireRow(res)
}

// MarkSubmissionFailed flags a discovery row whose job submission failed.
func (r *ArticleRepository) MarkSubmissionFailed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE articles SET status = $2 WHERE id = $1`,
		id, models.ArticleStatusSubmissionFailed,
	)
	if err != nil {
		return fmt.Errorf("mark submission failed: %w", err)
	}
	return requireRow(res)
}

// StoreResult records a completed pipeline run delivered via the webhook.
// If the URL is unknown (manual submission) a new row is created under the
// given fallback source id.
func (r *ArticleRepository) StoreResult(ctx context.Context, url string, output json.RawMessage, fallbackSourceID string) error {
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE articles
		SET status = $2, processed_at = $3, final_output = $4
		WHERE url = $1
	`, url, models.ArticleStatusProcessed, now, output)
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	r.log.Info("Result for unknown URL, creating article record",
		logger.String("url", url),
	)

	return r.Insert(ctx, &models.Article{
		SourceID:     fallbackSourceID,
		URL:          url,
		Status:       models.ArticleStatusProcessed,
		DiscoveredAt: now,
		ProcessedAt:  &now,
		FinalOutput:  output,
	})
}

// UpdateImage replaces the top_image inside the stored final_output.
func (r *ArticleRepository) UpdateImage(ctx context.Context, id, imageURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE articles
		SET final_output = jsonb_set(COALESCE(final_output, '{}'::jsonb), '{top_image}', to_jsonb($2::text))
		WHERE id = $1
	`, id, imageURL)
	if err != nil {
		return fmt.Errorf("update article image: %w", err)
	}
	return requireRow(res)
}

// Archive moves an article row into archived_articles.
func (r *ArticleRepository) Archive(ctx context.Context, id string) error {
	return r.moveTo(ctx, id, "archived_articles")
}

// SoftDelete moves an article row into deleted_articles.
func (r *ArticleRepository) SoftDelete(ctx context.Context, id string) error {
	return r.moveTo(ctx, id, "deleted_articles")
}

func (r *ArticleRepository) moveTo(ctx context.Context, id, table string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// table is one of two compile-time constants, never user input
	res, err := tx.ExecContext(ctx,
		`INSERT INTO `+table+` (`+articleColumns+`)
		 SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("copy article to %s: %w", table, err)
	}
	if rowErr := requireRow(res); rowErr != nil {
		return rowErr
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("remove archived article: %w", err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit move: %w", commitErr)
	}
	return nil
}
