package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tmarsden/coffers/internal/purse"
)

// ErrHoldingNotFound is returned when a quantity update references a holding
// that does not exist.
var ErrHoldingNotFound = errors.New("holding not found")

// ErrNegativeQuantity is returned when a quantity update would store a
// negative count.
var ErrNegativeQuantity = errors.New("holding quantity must be >= 0")

// HoldingRepository provides money holding persistence. It implements the
// ledger engine's HoldingStore interface.
type HoldingRepository struct {
	db *pgxpool.Pool
}

// NewHoldingRepository creates a HoldingRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewHoldingRepository(db *pgxpool.Pool) *HoldingRepository {
	return &HoldingRepository{db: db}
}

// Holdings returns all money holdings for the given character, ordered by
// region and descending unit value.
//
// Precondition: characterID must be > 0.
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *HoldingRepository) Holdings(ctx context.Context, characterID int64) ([]purse.Holding, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, character_id, region_key, coin_key, quantity, unit_value
		FROM holdings
		WHERE character_id = $1
		ORDER BY region_key ASC, unit_value DESC`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]purse.Holding, 0)
	for rows.Next() {
		var h purse.Holding
		if err := rows.Scan(
			&h.ID, &h.CharacterID, &h.RegionKey, &h.CoinKey, &h.Quantity, &h.UnitValue,
		); err != nil {
			return nil, fmt.Errorf("scanning holding row: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// CreateHoldings inserts new holdings for the character in one batch.
//
// Precondition: every holding must carry a fresh unique ID and belong to
// characterID.
// Postcondition: All holdings are inserted, or none are.
func (r *HoldingRepository) CreateHoldings(ctx context.Context, characterID int64, hs []purse.Holding) error {
	if len(hs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, h := range hs {
		if h.CharacterID != characterID {
			return fmt.Errorf("holding %s belongs to character %d, not %d", h.ID, h.CharacterID, characterID)
		}
		batch.Queue(`
			INSERT INTO holdings (id, character_id, region_key, coin_key, quantity, unit_value)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			h.ID, h.CharacterID, h.RegionKey, h.CoinKey, h.Quantity, h.UnitValue,
		)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning holdings insert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	results := tx.SendBatch(ctx, batch)
	for range hs {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("inserting holding: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing holdings insert batch: %w", err)
	}
	return tx.Commit(ctx)
}

// ApplyQuantities updates holding quantities in a single transaction. The
// whole batch succeeds or fails together: an unknown holding ID or a negative
// quantity leaves every holding untouched.
//
// Precondition: every update must reference a holding owned by characterID.
// Postcondition: All quantities are updated, or none are.
func (r *HoldingRepository) ApplyQuantities(ctx context.Context, characterID int64, updates []purse.QuantityUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	for _, u := range updates {
		if u.Quantity < 0 {
			return fmt.Errorf("holding %s: %w", u.HoldingID, ErrNegativeQuantity)
		}
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`
			UPDATE holdings SET quantity = $1, updated_at = NOW()
			WHERE id = $2 AND character_id = $3`,
			u.Quantity, u.HoldingID, characterID,
		)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning quantity update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	results := tx.SendBatch(ctx, batch)
	for _, u := range updates {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return fmt.Errorf("updating holding %s: %w", u.HoldingID, err)
		}
		if tag.RowsAffected() == 0 {
			results.Close()
			return fmt.Errorf("holding %s for character %d: %w", u.HoldingID, characterID, ErrHoldingNotFound)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing quantity update batch: %w", err)
	}
	return tx.Commit(ctx)
}
