package purse

import (
	"context"
	"fmt"
	"sync"
)

// Store is an in-memory holding store keyed by character. It satisfies the
// ledger engine's HoldingStore contract and mirrors the batch-update semantics
// of the postgres repository: reads are snapshots, mutations are
// all-or-nothing batches.
type Store struct {
	mu       sync.RWMutex
	holdings map[int64][]Holding
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{holdings: make(map[int64][]Holding)}
}

// Holdings returns a snapshot copy of the character's holdings.
//
// Postcondition: mutations of the returned slice do not affect the store.
func (s *Store) Holdings(_ context.Context, characterID int64) ([]Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Holding, len(s.holdings[characterID]))
	copy(out, s.holdings[characterID])
	return out, nil
}

// CreateHoldings adds new holdings for the character.
//
// Precondition: each holding has a unique ID and Quantity >= 0.
func (s *Store) CreateHoldings(_ context.Context, characterID int64, hs []Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hs {
		h.CharacterID = characterID
		s.holdings[characterID] = append(s.holdings[characterID], h)
	}
	return nil
}

// ApplyQuantities applies a batch of quantity updates atomically.
//
// Postcondition: either every update is applied or none is; an unknown
// holding ID or negative quantity fails the whole batch.
func (s *Store) ApplyQuantities(_ context.Context, characterID int64, updates []QuantityUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hs := s.holdings[characterID]
	indexes := make(map[string]int, len(hs))
	for i, h := range hs {
		indexes[h.ID] = i
	}

	// Validate the whole batch before touching anything.
	for _, u := range updates {
		if _, ok := indexes[u.HoldingID]; !ok {
			return fmt.Errorf("purse: holding %q not found for character %d", u.HoldingID, characterID)
		}
		if u.Quantity < 0 {
			return fmt.Errorf("purse: negative quantity %d for holding %q", u.Quantity, u.HoldingID)
		}
	}
	for _, u := range updates {
		hs[indexes[u.HoldingID]].Quantity = u.Quantity
	}
	return nil
}
