package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/uptrace/bun"

	"llnd-portal/internal/catalog"
)

// CatalogRow is the quiz_catalogs table.
type CatalogRow struct {
	bun.BaseModel `bun:"table:quiz_catalogs"`

	Version     string          `bun:"version,pk"`
	Fingerprint string          `bun:"fingerprint,notnull"`
	Data        json.RawMessage `bun:"data,type:jsonb,notnull"`
	CreatedAt   time.Time       `bun:"created_at,notnull,default:current_timestamp"`
}

// SeedCatalog validates raw and upserts it as a catalog version. Re-seeding
// the same version replaces its content and makes it current again.
func SeedCatalog(ctx context.Context, db *bun.DB, raw []byte) (CatalogRow, error) {
	c, err := catalog.Parse(raw)
	if err != nil {
		return CatalogRow{}, err
	}
	row := CatalogRow{
		Version:     c.Version,
		Fingerprint: c.Fingerprint,
		Data:        json.RawMessage(raw),
		CreatedAt:   time.Now().UTC(),
	}
	_, err = db.NewInsert().
		Model(&row).
		On("CONFLICT (version) DO UPDATE").
		Set("fingerprint = EXCLUDED.fingerprint").
		Set("data = EXCLUDED.data").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	if err != nil {
		return CatalogRow{}, fmt.Errorf("seed catalog %s: %w", c.Version, err)
	}
	return row, nil
}
