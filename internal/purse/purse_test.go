package purse

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewHolding(t *testing.T) {
	h := NewHolding(7, "aldmark", "aldmark_crown", 3, 240)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, int64(7), h.CharacterID)
	assert.Equal(t, "aldmark", h.RegionKey)
	assert.Equal(t, "aldmark_crown", h.CoinKey)
	assert.Equal(t, 3, h.Quantity)
	assert.Equal(t, 240, h.UnitValue)
	assert.Equal(t, 720, h.Value())

	other := NewHolding(7, "aldmark", "aldmark_crown", 3, 240)
	assert.NotEqual(t, h.ID, other.ID)
}

func TestStoreHoldingsEmpty(t *testing.T) {
	store := NewStore()
	hs, err := store.Holdings(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, hs)
}

func TestStoreCreateAndList(t *testing.T) {
	store := NewStore()
	crown := NewHolding(1, "aldmark", "aldmark_crown", 2, 240)
	penny := NewHolding(1, "aldmark", "aldmark_penny", 9, 1)
	require.NoError(t, store.CreateHoldings(context.Background(), 1, []Holding{crown, penny}))

	hs, err := store.Holdings(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, crown.ID, hs[0].ID)
	assert.Equal(t, penny.ID, hs[1].ID)

	// Other characters see nothing.
	hs, err = store.Holdings(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, hs)
}

func TestStoreCreateStampsCharacterID(t *testing.T) {
	store := NewStore()
	h := NewHolding(99, "aldmark", "aldmark_crown", 1, 240)
	require.NoError(t, store.CreateHoldings(context.Background(), 1, []Holding{h}))

	hs, err := store.Holdings(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, int64(1), hs[0].CharacterID)
}

func TestStoreSnapshotIsolation(t *testing.T) {
	store := NewStore()
	h := NewHolding(1, "aldmark", "aldmark_crown", 5, 240)
	require.NoError(t, store.CreateHoldings(context.Background(), 1, []Holding{h}))

	snap, err := store.Holdings(context.Background(), 1)
	require.NoError(t, err)
	snap[0].Quantity = 0

	fresh, err := store.Holdings(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, fresh[0].Quantity)
}

func TestStoreApplyQuantities(t *testing.T) {
	store := NewStore()
	crown := NewHolding(1, "aldmark", "aldmark_crown", 2, 240)
	penny := NewHolding(1, "aldmark", "aldmark_penny", 9, 1)
	require.NoError(t, store.CreateHoldings(context.Background(), 1, []Holding{crown, penny}))

	err := store.ApplyQuantities(context.Background(), 1, []QuantityUpdate{
		{HoldingID: crown.ID, Quantity: 1},
		{HoldingID: penny.ID, Quantity: 0},
	})
	require.NoError(t, err)

	hs, err := store.Holdings(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, hs[0].Quantity)
	assert.Equal(t, 0, hs[1].Quantity)
}

func TestStoreApplyQuantitiesUnknownIDFailsBatch(t *testing.T) {
	store := NewStore()
	crown := NewHolding(1, "aldmark", "aldmark_crown", 2, 240)
	require.NoError(t, store.CreateHoldings(context.Background(), 1, []Holding{crown}))

	err := store.ApplyQuantities(context.Background(), 1, []QuantityUpdate{
		{HoldingID: crown.ID, Quantity: 0},
		{HoldingID: "nope", Quantity: 3},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	// The valid entry of the failed batch was not applied either.
	hs, err := store.Holdings(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, hs[0].Quantity)
}

func TestStoreApplyQuantitiesNegativeFailsBatch(t *testing.T) {
	store := NewStore()
	crown := NewHolding(1, "aldmark", "aldmark_crown", 2, 240)
	penny := NewHolding(1, "aldmark", "aldmark_penny", 9, 1)
	require.NoError(t, store.CreateHoldings(context.Background(), 1, []Holding{crown, penny}))

	err := store.ApplyQuantities(context.Background(), 1, []QuantityUpdate{
		{HoldingID: crown.ID, Quantity: 1},
		{HoldingID: penny.ID, Quantity: -1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative quantity")

	hs, err := store.Holdings(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, hs[0].Quantity)
	assert.Equal(t, 9, hs[1].Quantity)
}

func TestStoreApplyQuantitiesWrongCharacter(t *testing.T) {
	store := NewStore()
	crown := NewHolding(1, "aldmark", "aldmark_crown", 2, 240)
	require.NoError(t, store.CreateHoldings(context.Background(), 1, []Holding{crown}))

	err := store.ApplyQuantities(context.Background(), 2, []QuantityUpdate{
		{HoldingID: crown.ID, Quantity: 0},
	})
	require.Error(t, err)
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore()
	crown := NewHolding(1, "aldmark", "aldmark_crown", 100, 240)
	require.NoError(t, store.CreateHoldings(context.Background(), 1, []Holding{crown}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(q int) {
			defer wg.Done()
			_ = store.ApplyQuantities(context.Background(), 1, []QuantityUpdate{
				{HoldingID: crown.ID, Quantity: q},
			})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = store.Holdings(context.Background(), 1)
		}()
	}
	wg.Wait()

	hs, err := store.Holdings(context.Background(), 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, hs[0].Quantity, 0)
	assert.Less(t, hs[0].Quantity, 50)
}

// Property: a batch either applies in full or leaves every holding unchanged.
func TestPropertyApplyQuantitiesAtomic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := NewStore()
		count := rapid.IntRange(1, 6).Draw(t, "count")
		hs := make([]Holding, count)
		for i := range hs {
			hs[i] = NewHolding(1, "aldmark", "coin", rapid.IntRange(0, 50).Draw(t, "qty"), 1)
		}
		if err := store.CreateHoldings(context.Background(), 1, hs); err != nil {
			t.Fatalf("create: %v", err)
		}

		poison := rapid.Bool().Draw(t, "poison")
		updates := make([]QuantityUpdate, 0, count+1)
		for _, h := range hs {
			updates = append(updates, QuantityUpdate{
				HoldingID: h.ID,
				Quantity:  rapid.IntRange(0, 50).Draw(t, "newQty"),
			})
		}
		if poison {
			updates = append(updates, QuantityUpdate{HoldingID: "missing", Quantity: 1})
		}

		err := store.ApplyQuantities(context.Background(), 1, updates)
		after, herr := store.Holdings(context.Background(), 1)
		if herr != nil {
			t.Fatalf("holdings: %v", herr)
		}
		for i, h := range after {
			if poison {
				if err == nil {
					t.Fatal("poisoned batch succeeded")
				}
				if h.Quantity != hs[i].Quantity {
					t.Fatalf("failed batch mutated holding %d", i)
				}
			} else {
				if err != nil {
					t.Fatalf("apply: %v", err)
				}
				if h.Quantity != updates[i].Quantity {
					t.Fatalf("holding %d: got %d want %d", i, h.Quantity, updates[i].Quantity)
				}
			}
		}
	})
}
