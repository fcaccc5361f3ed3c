package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
)

const sourceColumns = `id, name, listing_url, url_pattern, fetch_interval_minutes,
       is_active, delay_seconds, last_run_at, created_at`

// SourceRepository persists listing-page configurations.
type SourceRepository struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewSourceRepository(db *sqlx.DB, log logger.Logger) *SourceRepository {
	return &SourceRepository{db: db, log: log}
}

func (r *SourceRepository) Create(ctx context.Context, source *models.Source) error {
	if source.ID == "" {
		source.ID = uuid.New().String()
	}
	source.CreatedAt = time.Now().UTC()
	if source.FetchIntervalMinutes <= 0 {
		source.FetchIntervalMinutes = 60
	}

	query := `
		INSERT INTO sources (` + sourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		source.ID,
		source.Name,
		source.ListingURL,
		source.URLPattern,
		source.FetchIntervalMinutes,
		source.IsActive,
		source.DelaySeconds,
		source.LastRunAt,
		source.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*models.Source, error) {
	var source models.Source
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	err := r.db.GetContext(ctx, &source, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query source: %w", err)
	}
	return &source, nil
}

func (r *SourceRepository) List(ctx context.Context) ([]models.Source, error) {
	var sources []models.Source
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// ListActive returns sources eligible for discovery.
func (r *SourceRepository) ListActive(ctx context.Context) ([]models.Source, error) {
	var sources []models.Source
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE is_active = true ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	return sources, nil
}

// Update applies a partial update. Zero-value fields are left untouched via
// COALESCE/NULLIF so PATCH semantics hold.
func (r *SourceRepository) Update(ctx context.Context, source *models.Source) error {
	query := `
		UPDATE sources SET
			name = COALESCE(NULLIF($2, ''), name),
			listing_url = COALESCE(NULLIF($3, ''), listing_url),
			url_pattern = COALESCE(NULLIF($4, ''), url_pattern),
			fetch_interval_minutes = CASE WHEN $5 > 0 THEN $5 ELSE fetch_interval_minutes END,
			delay_seconds = CASE WHEN $6 > 0 THEN $6 ELSE delay_seconds END
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query,
		source.ID,
		source.Name,
		source.ListingURL,
		source.URLPattern,
		source.FetchIntervalMinutes,
		source.DelaySeconds,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return requireRow(res)
}

// Toggle flips is_active and returns the new value.
func (r *SourceRepository) Toggle(ctx context.Context, id string) (bool, error) {
	var isActive bool
	query := `UPDATE sources SET is_active = NOT is_active WHERE id = $1 RETURNING is_active`

	err := r.db.QueryRowContext(ctx, query, id).Scan(&isActive)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle source: %w", err)
	}
	return isActive, nil
}

// TouchLastRun records that the scheduler just checked this source.
func (r *SourceRepository) TouchLastRun(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sources SET last_run_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last_run_at: %w", err)
	}
	return requireRow(res)
}

func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return requireRow(res)
}

// DelayForDomain implements governance.DelayLookup: a source whose
// listing_url contains the domain supplies its delay override.
func (r *SourceRepository) DelayForDomain(ctx context.Context, domain string) (time.Duration, bool, error) {
	var delaySeconds int
	query := `
		SELECT delay_seconds FROM sources
		WHERE listing_url LIKE '%' || $1 || '%' AND delay_seconds > 0
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &delaySeconds, query, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("delay lookup for %s: %w", domain, err)
	}
	return time.Duration(delaySeconds) * time.Second, true, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
