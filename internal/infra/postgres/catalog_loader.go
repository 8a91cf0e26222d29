package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"llnd-portal/internal/catalog"
	"llnd-portal/internal/domain"
)

// CatalogLoader loads versioned catalog JSONB from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

// LoadCatalog reads one version, or the most recently seeded one when version is "".
func (l *CatalogLoader) LoadCatalog(ctx context.Context, version string) (domain.Catalog, error) {
	var (
		raw         []byte
		fingerprint string
		err         error
	)
	if version == "" {
		err = l.pool.QueryRow(ctx, `SELECT data, fingerprint FROM quiz_catalogs ORDER BY created_at DESC LIMIT 1`).Scan(&raw, &fingerprint)
	} else {
		err = l.pool.QueryRow(ctx, `SELECT data, fingerprint FROM quiz_catalogs WHERE version=$1`, version).Scan(&raw, &fingerprint)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Catalog{}, fmt.Errorf("%w: version %q", domain.ErrCatalogNotFound, version)
	}
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	c, err := catalog.Parse(raw)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("parse catalog %q: %w", version, err)
	}
	// jsonb reorders keys; keep the fingerprint of the document as seeded.
	c.Fingerprint = fingerprint
	return c, nil
}
