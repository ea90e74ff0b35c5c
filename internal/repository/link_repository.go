// Package repository handles data persistence.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jmdto/linkshort/internal/database"
	"github.com/jmdto/linkshort/internal/models"
	"github.com/jmdto/linkshort/internal/shortcode"
)

// LinkRepository defines the persistence boundary for links and variants.
//
// Base links and variants are stored as two entity kinds but share one flat
// short-code namespace: CodeExists spans both, and both Create methods fail
// with shortcode.ErrCodeTaken when the code is held by either kind.
type LinkRepository interface {
	// Create stores a new link and returns it with store-assigned fields.
	Create(ctx context.Context, link *models.Link) (*models.Link, error)

	// CreateVariant stores a new variant for an existing link.
	CreateVariant(ctx context.Context, variant *models.Variant) (*models.Variant, error)

	// GetByCode retrieves a base link by its short code.
	GetByCode(ctx context.Context, code string) (*models.Link, error)

	// GetVariantByCode retrieves a variant by its short code with its
	// parent link populated.
	GetVariantByCode(ctx context.Context, code string) (*models.Variant, error)

	// GetByID retrieves a link by its ID, including its variants.
	GetByID(ctx context.Context, id string) (*models.Link, error)

	// GetVariantByID retrieves a variant by its ID, without its parent.
	GetVariantByID(ctx context.Context, id string) (*models.Variant, error)

	// ListByOwner returns all links owned by a user, newest first,
	// including their variants.
	ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error)

	// UpdateLongURL changes a link's destination.
	UpdateLongURL(ctx context.Context, id, longURL string) (*models.Link, error)

	// Delete removes a link. Its variants are removed by cascade.
	Delete(ctx context.Context, id string) error

	// DeleteVariant removes a single variant and returns its short code,
	// so cache layers can evict the entry.
	DeleteVariant(ctx context.Context, id string) (string, error)

	// IncrementLinkClicks atomically bumps a base link's click count.
	IncrementLinkClicks(ctx context.Context, code string) error

	// IncrementVariantClicks atomically bumps a variant's click count.
	IncrementVariantClicks(ctx context.Context, code string) error

	// BatchIncrementClicks applies accumulated click counts in one pass.
	BatchIncrementClicks(ctx context.Context, counts map[models.ClickKey]int64) error

	// CodeExists reports whether a code is taken in either namespace.
	CodeExists(ctx context.Context, code string) (bool, error)

	// HealthCheck verifies the repository is reachable.
	HealthCheck(ctx context.Context) error
}

// PostgresLinkRepository implements LinkRepository using PostgreSQL.
type PostgresLinkRepository struct {
	pool *database.Pool
}

// NewPostgresLinkRepository creates a PostgreSQL-backed link repository.
func NewPostgresLinkRepository(pool *database.Pool) *PostgresLinkRepository {
	return &PostgresLinkRepository{pool: pool}
}

const linkColumns = `id, short_code, long_url, owner_id, click_count, created_at, updated_at`

const variantColumns = `id, short_code, link_id, utm_source, utm_medium, utm_campaign, utm_term, utm_content, click_count, created_at`

// lockCode takes a transaction-scoped advisory lock on the code, serializing
// writers across both tables. The opposite-namespace existence checks below
// only see committed rows, so without the lock a racing link create and
// variant create could each pass their check and land the same code in both
// tables; the per-table unique indexes cannot catch that.
func lockCode(ctx context.Context, tx pgx.Tx, code string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, code); err != nil {
		return fmt.Errorf("failed to lock short code: %w", err)
	}
	return nil
}

// Create stores a new link. The insert runs in a transaction that locks the
// code and checks the variant namespace, so a code can never end up naming
// both a link and a variant. A lost race surfaces as shortcode.ErrCodeTaken.
func (r *PostgresLinkRepository) Create(ctx context.Context, link *models.Link) (*models.Link, error) {
	if err := link.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockCode(ctx, tx, link.ShortCode); err != nil {
		return nil, err
	}

	var inOtherNamespace bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM variants WHERE short_code = $1)`,
		link.ShortCode,
	).Scan(&inOtherNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to check variant namespace: %w", err)
	}
	if inOtherNamespace {
		return nil, shortcode.ErrCodeTaken
	}

	query := `
		INSERT INTO links (id, short_code, long_url, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + linkColumns

	var created models.Link
	err = tx.QueryRow(ctx, query, link.ID, link.ShortCode, link.LongURL, link.OwnerID).Scan(
		&created.ID,
		&created.ShortCode,
		&created.LongURL,
		&created.OwnerID,
		&created.ClickCount,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, shortcode.ErrCodeTaken
		}
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit link: %w", err)
	}
	return &created, nil
}

// CreateVariant stores a new variant, guarding the base-link namespace the
// same way Create guards the variant namespace.
func (r *PostgresLinkRepository) CreateVariant(ctx context.Context, variant *models.Variant) (*models.Variant, error) {
	if err := variant.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockCode(ctx, tx, variant.ShortCode); err != nil {
		return nil, err
	}

	var inOtherNamespace bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM links WHERE short_code = $1)`,
		variant.ShortCode,
	).Scan(&inOtherNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to check link namespace: %w", err)
	}
	if inOtherNamespace {
		return nil, shortcode.ErrCodeTaken
	}

	query := `
		INSERT INTO variants (id, short_code, link_id, utm_source, utm_medium, utm_campaign, utm_term, utm_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + variantColumns

	var created models.Variant
	err = tx.QueryRow(ctx, query,
		variant.ID, variant.ShortCode, variant.LinkID,
		variant.UTMSource, variant.UTMMedium, variant.UTMCampaign,
		variant.UTMTerm, variant.UTMContent,
	).Scan(
		&created.ID,
		&created.ShortCode,
		&created.LinkID,
		&created.UTMSource,
		&created.UTMMedium,
		&created.UTMCampaign,
		&created.UTMTerm,
		&created.UTMContent,
		&created.ClickCount,
		&created.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, shortcode.ErrCodeTaken
		}
		if isForeignKeyViolation(err) {
			return nil, models.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to create variant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit variant: %w", err)
	}
	return &created, nil
}

// GetByCode retrieves a base link by its short code.
func (r *PostgresLinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`

	var link models.Link
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&link.ID,
		&link.ShortCode,
		&link.LongURL,
		&link.OwnerID,
		&link.ClickCount,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return &link, nil
}

// GetVariantByCode retrieves a variant with its parent link in one query,
// so resolution never needs a second round-trip.
func (r *PostgresLinkRepository) GetVariantByCode(ctx context.Context, code string) (*models.Variant, error) {
	query := `
		SELECT v.id, v.short_code, v.link_id,
		       v.utm_source, v.utm_medium, v.utm_campaign, v.utm_term, v.utm_content,
		       v.click_count, v.created_at,
		       l.id, l.short_code, l.long_url, l.owner_id, l.click_count, l.created_at, l.updated_at
		FROM variants v
		JOIN links l ON l.id = v.link_id
		WHERE v.short_code = $1
	`

	var variant models.Variant
	var parent models.Link
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&variant.ID,
		&variant.ShortCode,
		&variant.LinkID,
		&variant.UTMSource,
		&variant.UTMMedium,
		&variant.UTMCampaign,
		&variant.UTMTerm,
		&variant.UTMContent,
		&variant.ClickCount,
		&variant.CreatedAt,
		&parent.ID,
		&parent.ShortCode,
		&parent.LongURL,
		&parent.OwnerID,
		&parent.ClickCount,
		&parent.CreatedAt,
		&parent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}

	variant.Parent = &parent
	return &variant, nil
}

// GetVariantByID retrieves a variant by ID. The parent link is not
// populated; callers needing it fetch the link separately.
func (r *PostgresLinkRepository) GetVariantByID(ctx context.Context, id string) (*models.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE id = $1`

	var v models.Variant
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.ShortCode,
		&v.LinkID,
		&v.UTMSource,
		&v.UTMMedium,
		&v.UTMCampaign,
		&v.UTMTerm,
		&v.UTMContent,
		&v.ClickCount,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}
	return &v, nil
}

// GetByID retrieves a link by ID with its variants attached.
func (r *PostgresLinkRepository) GetByID(ctx context.Context, id string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1`

	var link models.Link
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&link.ID,
		&link.ShortCode,
		&link.LongURL,
		&link.OwnerID,
		&link.ClickCount,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	variants, err := r.variantsForLinks(ctx, []string{link.ID})
	if err != nil {
		return nil, err
	}
	link.Variants = variants[link.ID]
	return &link, nil
}

// ListByOwner returns a user's links, newest first, with variants attached.
func (r *PostgresLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []models.Link
	var ids []string
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(
			&link.ID,
			&link.ShortCode,
			&link.LongURL,
			&link.OwnerID,
			&link.ClickCount,
			&link.CreatedAt,
			&link.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
		ids = append(ids, link.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return links, nil
	}

	variants, err := r.variantsForLinks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range links {
		links[i].Variants = variants[links[i].ID]
	}
	return links, nil
}

// variantsForLinks fetches variants for a set of link IDs, keyed by link.
func (r *PostgresLinkRepository) variantsForLinks(ctx context.Context, linkIDs []string) (map[string][]models.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE link_id = ANY($1) ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, linkIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.Variant)
	for rows.Next() {
		var v models.Variant
		if err := rows.Scan(
			&v.ID,
			&v.ShortCode,
			&v.LinkID,
			&v.UTMSource,
			&v.UTMMedium,
			&v.UTMCampaign,
			&v.UTMTerm,
			&v.UTMContent,
			&v.ClickCount,
			&v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		result[v.LinkID] = append(result[v.LinkID], v)
	}
	return result, rows.Err()
}

// UpdateLongURL changes a link's destination URL.
func (r *PostgresLinkRepository) UpdateLongURL(ctx context.Context, id, longURL string) (*models.Link, error) {
	if !models.IsValidURL(longURL) {
		return nil, models.ErrInvalidURL
	}

	query := `
		UPDATE links SET long_url = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + linkColumns

	var link models.Link
	err := r.pool.QueryRow(ctx, query, id, longURL).Scan(
		&link.ID,
		&link.ShortCode,
		&link.LongURL,
		&link.OwnerID,
		&link.ClickCount,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}
	return &link, nil
}

// Delete removes a link; the variants FK cascades.
func (r *PostgresLinkRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrLinkNotFound
	}
	return nil
}

// DeleteVariant removes a single variant, returning its short code.
func (r *PostgresLinkRepository) DeleteVariant(ctx context.Context, id string) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM variants WHERE id = $1 RETURNING short_code`, id).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrLinkNotFound
		}
		return "", fmt.Errorf("failed to delete variant: %w", err)
	}
	return code, nil
}

// IncrementLinkClicks atomically bumps a base link's click count.
func (r *PostgresLinkRepository) IncrementLinkClicks(ctx context.Context, code string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE links SET click_count = click_count + 1 WHERE short_code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to increment link clicks: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrLinkNotFound
	}
	return nil
}

// IncrementVariantClicks atomically bumps a variant's click count.
func (r *PostgresLinkRepository) IncrementVariantClicks(ctx context.Context, code string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE variants SET click_count = click_count + 1 WHERE short_code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to increment variant clicks: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrLinkNotFound
	}
	return nil
}

// BatchIncrementClicks applies accumulated counts from the click counter.
// Rows deleted since the clicks were recorded are skipped silently.
func (r *PostgresLinkRepository) BatchIncrementClicks(ctx context.Context, counts map[models.ClickKey]int64) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for key, n := range counts {
		if n <= 0 {
			continue
		}
		table := "links"
		if key.Kind == models.KindVariant {
			table = "variants"
		}
		_, err := tx.Exec(ctx,
			`UPDATE `+table+` SET click_count = click_count + $2 WHERE short_code = $1`,
			key.Code, n,
		)
		if err != nil {
			return fmt.Errorf("failed to flush clicks for %s: %w", key.Code, err)
		}
	}

	return tx.Commit(ctx)
}

// CodeExists is the single predicate spanning both namespaces. Allocation
// must never hand out a code that exists as either a link or a variant.
func (r *PostgresLinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `
		SELECT EXISTS(SELECT 1 FROM links WHERE short_code = $1)
		    OR EXISTS(SELECT 1 FROM variants WHERE short_code = $1)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// HealthCheck verifies the database connection is healthy.
func (r *PostgresLinkRepository) HealthCheck(ctx context.Context) error {
	return r.pool.HealthCheck(ctx)
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isForeignKeyViolation reports whether err is a foreign key violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
