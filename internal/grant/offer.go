// Package grant manages GM credit offers: published grants of money that a
// limited number of characters may claim on a first-come basis.
package grant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tmarsden/coffers/internal/ledger"
)

var (
	// ErrOfferNotFound indicates the offer ID does not exist in the book.
	ErrOfferNotFound = errors.New("grant: offer not found")
	// ErrOfferExhausted indicates all claims on the offer have been taken.
	ErrOfferExhausted = errors.New("grant: offer exhausted")
)

// Offer is a published grant of money claimable a fixed number of times.
type Offer struct {
	ID        string
	Command   string
	Remaining int
	CreatedAt time.Time
}

// Creditor applies a credit command to a character's holdings.
type Creditor interface {
	Credit(ctx context.Context, characterID int64, command string) (*ledger.Outcome, error)
}

// Book holds the open offers. All claim accounting happens under a single
// lock so the remaining count can never go below zero, no matter how many
// characters race for the last claim.
type Book struct {
	mu     sync.Mutex
	offers map[string]*Offer
	engine Creditor
	logger *zap.Logger
}

// NewBook creates an empty offer book backed by the given creditor.
//
// Precondition: engine and logger must be non-nil.
func NewBook(engine Creditor, logger *zap.Logger) *Book {
	return &Book{
		offers: make(map[string]*Offer),
		engine: engine,
		logger: logger,
	}
}

// Publish creates a new offer for the given money command with a claim limit.
//
// Precondition: command must parse as a valid money command; claims must be >= 1.
// Postcondition: Returns the stored offer with a fresh unique ID.
func (b *Book) Publish(command string, claims int) (*Offer, error) {
	if _, err := ledger.ParseRequest(command); err != nil {
		return nil, fmt.Errorf("grant: Book.Publish: %w", err)
	}
	if claims < 1 {
		return nil, fmt.Errorf("grant: Book.Publish: claims must be >= 1, got %d", claims)
	}

	offer := &Offer{
		ID:        uuid.New().String(),
		Command:   command,
		Remaining: claims,
		CreatedAt: time.Now(),
	}

	b.mu.Lock()
	b.offers[offer.ID] = offer
	b.mu.Unlock()

	b.logger.Info("offer published",
		zap.String("offer", offer.ID),
		zap.String("command", command),
		zap.Int("claims", claims),
	)
	return offer, nil
}

// Claim takes one claim on the offer and credits the character. The remaining
// count is decremented before the credit runs and restored if the credit
// fails, so a failed claim never burns a slot.
//
// Precondition: offerID must identify a published offer with claims remaining.
// Postcondition: On success, exactly one claim is consumed and the character's
// holdings reflect the credited amount.
func (b *Book) Claim(ctx context.Context, offerID string, characterID int64) (*ledger.Outcome, error) {
	b.mu.Lock()
	offer, ok := b.offers[offerID]
	if !ok {
		b.mu.Unlock()
		return nil, ErrOfferNotFound
	}
	if offer.Remaining <= 0 {
		b.mu.Unlock()
		return nil, ErrOfferExhausted
	}
	offer.Remaining--
	command := offer.Command
	b.mu.Unlock()

	outcome, err := b.engine.Credit(ctx, characterID, command)
	if err != nil {
		b.mu.Lock()
		offer.Remaining++
		b.mu.Unlock()
		return nil, fmt.Errorf("grant: Book.Claim: crediting character %d: %w", characterID, err)
	}

	b.logger.Info("offer claimed",
		zap.String("offer", offerID),
		zap.Int64("character", characterID),
		zap.Int("remaining", b.Remaining(offerID)),
	)
	return outcome, nil
}

// Remaining reports the claims left on an offer, or 0 if it does not exist.
func (b *Book) Remaining(offerID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offer, ok := b.offers[offerID]; ok {
		return offer.Remaining
	}
	return 0
}

// Offers returns a snapshot of all open offers.
func (b *Book) Offers() []Offer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Offer, 0, len(b.offers))
	for _, offer := range b.offers {
		out = append(out, *offer)
	}
	return out
}

// Withdraw removes an offer from the book.
//
// Postcondition: Subsequent claims on the offer return ErrOfferNotFound.
func (b *Book) Withdraw(offerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.offers[offerID]; !ok {
		return ErrOfferNotFound
	}
	delete(b.offers, offerID)
	return nil
}
