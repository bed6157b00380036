package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/database"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

const (
	taxonomyColumns = `id, kind, name, active, created_at, updated_at`

	uniqueViolation = "23505"
)

// TaxonomyRepository implements repository.TaxonomyRepository using PostgreSQL.
type TaxonomyRepository struct {
	pool database.DBTX
}

// NewTaxonomyRepository creates a new PostgreSQL-backed taxonomy repository.
func NewTaxonomyRepository(pool database.DBTX) *TaxonomyRepository {
	return &TaxonomyRepository{pool: pool}
}

func scanTaxonomy(row pgx.Row) (*domain.TaxonomyEntry, error) {
	var (
		e    domain.TaxonomyEntry
		kind string
	)
	if err := row.Scan(&e.ID, &kind, &e.Name, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Kind = domain.TaxonomyKind(kind)
	return &e, nil
}

// duplicateOr maps a violation of idx_taxonomy_active_name to DuplicateNameError.
func duplicateOr(err error, e *domain.TaxonomyEntry, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &domain.DuplicateNameError{Kind: e.Kind, Name: e.Name}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Create inserts e and sets its ID.
func (r *TaxonomyRepository) Create(ctx context.Context, e *domain.TaxonomyEntry) error {
	query := `
		INSERT INTO taxonomy_entries (kind, name, active, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, string(e.Kind), e.Name, e.Active).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return duplicateOr(err, e, "insert taxonomy entry")
	}
	return nil
}

// Update saves the name and active flag of e.
func (r *TaxonomyRepository) Update(ctx context.Context, e *domain.TaxonomyEntry) error {
	query := `
		UPDATE taxonomy_entries
		SET name = $3, active = $4, updated_at = NOW()
		WHERE id = $1 AND kind = $2
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query, e.ID, string(e.Kind), e.Name, e.Active).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return duplicateOr(err, e, "update taxonomy entry")
	}
	return nil
}

func (r *TaxonomyRepository) Get(ctx context.Context, kind domain.TaxonomyKind, id int64) (*domain.TaxonomyEntry, error) {
	query := `SELECT ` + taxonomyColumns + ` FROM taxonomy_entries WHERE id = $1 AND kind = $2`

	e, err := scanTaxonomy(r.pool.QueryRow(ctx, query, id, string(kind)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get taxonomy entry: %w", err)
	}
	return e, nil
}

func (r *TaxonomyRepository) List(ctx context.Context, kind domain.TaxonomyKind, includeInactive bool) ([]domain.TaxonomyEntry, error) {
	query := `
		SELECT ` + taxonomyColumns + `
		FROM taxonomy_entries
		WHERE kind = $1 AND (active OR $2)
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, string(kind), includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list taxonomy entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.TaxonomyEntry, 0)
	for rows.Next() {
		e, err := scanTaxonomy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan taxonomy entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate taxonomy entries: %w", err)
	}
	return entries, nil
}

func (r *TaxonomyRepository) FindActiveByName(ctx context.Context, kind domain.TaxonomyKind, name string) (*domain.TaxonomyEntry, error) {
	query := `
		SELECT ` + taxonomyColumns + `
		FROM taxonomy_entries
		WHERE kind = $1 AND active AND lower(name) = lower($2)
		LIMIT 1`

	e, err := scanTaxonomy(r.pool.QueryRow(ctx, query, string(kind), domain.NormalizeName(name)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find taxonomy entry: %w", err)
	}
	return e, nil
}
