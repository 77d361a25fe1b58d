package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// currentRegionKey is the ledger_settings row holding the pivot region.
const currentRegionKey = "current_region"

// SettingsRepository persists process-wide ledger settings. It implements the
// region registry's SettingStore interface.
type SettingsRepository struct {
	db *pgxpool.Pool
}

// NewSettingsRepository creates a SettingsRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// CurrentRegion returns the persisted current region key, or "" when no
// region has been selected yet.
func (r *SettingsRepository) CurrentRegion(ctx context.Context) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `
		SELECT value FROM ledger_settings WHERE key = $1`,
		currentRegionKey,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading current region: %w", err)
	}
	return value, nil
}

// SetCurrentRegion persists the current region key, replacing any previous
// selection.
//
// Precondition: key must be non-empty.
func (r *SettingsRepository) SetCurrentRegion(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ledger_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		currentRegionKey, key,
	)
	if err != nil {
		return fmt.Errorf("persisting current region: %w", err)
	}
	return nil
}
