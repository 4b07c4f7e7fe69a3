package processing

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.Mutex
	records map[string]Processing
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[string]Processing)}
}

func (r *memoryRepository) Create(_ context.Context, p Processing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[p.ID] = p
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Processing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[id]
	if !ok {
		return Processing{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepository) AdvanceConfirmations(_ context.Context, id string, count int) (Processing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[id]
	if !ok {
		return Processing{}, ErrNotFound
	}
	if count > p.ConfirmationCount && p.Status != StatusFailed && p.Status != StatusRefunded {
		p.ConfirmationCount = count
		r.records[id] = p
	}
	return r.records[id], nil
}

func (r *memoryRepository) TransitionStatus(_ context.Context, id, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	r.records[id] = p
	return true, nil
}

func (r *memoryRepository) MarkConfirmed(_ context.Context, id string, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != StatusConfirming {
		return false, nil
	}
	p.Status = StatusConfirmed
	at := completedAt.UTC()
	p.CompletedAt = &at
	r.records[id] = p
	return true, nil
}

func (r *memoryRepository) SetFundingState(_ context.Context, id, state string, fundedCents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	p.FundingState = state
	p.FundedUSDCents = fundedCents
	r.records[id] = p
	return nil
}
