package quote

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu     sync.Mutex
	quotes map[string]ConversionQuote
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{quotes: make(map[string]ConversionQuote)}
}

func (r *memoryRepository) Create(_ context.Context, q ConversionQuote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes[q.ID] = q
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (ConversionQuote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return ConversionQuote{}, ErrNotFound
	}
	return q, nil
}

func (r *memoryRepository) MarkUsed(_ context.Context, id string, now time.Time) (ConversionQuote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok || !q.Redeemable(now) {
		return ConversionQuote{}, ErrQuoteNotRedeemable
	}
	q.Status = StatusUsed
	r.quotes[id] = q
	return q, nil
}

func (r *memoryRepository) MarkExpired(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok || q.Status != StatusActive {
		return nil
	}
	q.Status = StatusExpired
	r.quotes[id] = q
	return nil
}
