package fraud

import (
	"context"
	"sync"
	"time"
)

type observedTx struct {
	cardID      string
	amountCents int64
	confirmed   bool
	at          time.Time
}

// MemoryRepository is an in-memory fraud signal store for tests. Transaction
// history is seeded directly instead of flowing from a processing table.
type MemoryRepository struct {
	mu        sync.RWMutex
	risks     map[string]AddressRisk
	activity  map[string][]SuspiciousActivity
	txHistory []observedTx
	blacklist map[string]struct{}
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		risks:     make(map[string]AddressRisk),
		activity:  make(map[string][]SuspiciousActivity),
		blacklist: make(map[string]struct{}),
	}
}

// Blacklist adds an address to the blacklist set.
func (r *MemoryRepository) Blacklist(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blacklist[address] = struct{}{}
}

// SeedTransaction records a historical transaction for aggregate checks.
func (r *MemoryRepository) SeedTransaction(cardID string, amountCents int64, confirmed bool, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txHistory = append(r.txHistory, observedTx{cardID: cardID, amountCents: amountCents, confirmed: confirmed, at: at})
}

func (r *MemoryRepository) IsBlacklisted(_ context.Context, address string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.blacklist[address]; ok {
		return true, nil
	}
	risk, ok := r.risks[address]
	return ok && risk.Level == RiskBlacklisted, nil
}

func (r *MemoryRepository) GetAddressRisk(_ context.Context, address string) (*AddressRisk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	risk, ok := r.risks[address]
	if !ok {
		return nil, nil
	}
	out := risk
	return &out, nil
}

func (r *MemoryRepository) UpsertAddressRisk(_ context.Context, risk AddressRisk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.risks[risk.Address]
	if ok {
		existing.Level = risk.Level
		existing.LastSeen = risk.LastSeen
		r.risks[risk.Address] = existing
		return nil
	}
	r.risks[risk.Address] = risk
	return nil
}

func (r *MemoryRepository) ObserveAddress(_ context.Context, address string, amountCents int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	risk, ok := r.risks[address]
	if !ok {
		risk = AddressRisk{Address: address, Level: RiskLow}
	}
	risk.TransactionCount++
	risk.TotalAmountCents += amountCents
	risk.LastSeen = at
	r.risks[address] = risk
	return nil
}

func (r *MemoryRepository) ConfirmedTotalCents(_ context.Context, cardID string, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, tx := range r.txHistory {
		if tx.cardID == cardID && tx.confirmed && !tx.at.Before(since) {
			total += tx.amountCents
		}
	}
	return total, nil
}

func (r *MemoryRepository) TransactionCount(_ context.Context, cardID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, tx := range r.txHistory {
		if tx.cardID == cardID && !tx.at.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) AverageAmountCents(_ context.Context, cardID string, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	count := int64(0)
	for _, tx := range r.txHistory {
		if tx.cardID == cardID && tx.confirmed && !tx.at.Before(since) {
			total += tx.amountCents
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return total / count, nil
}

func (r *MemoryRepository) RecordSuspiciousActivity(_ context.Context, activity SuspiciousActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activity[activity.AddressHash] = append(r.activity[activity.AddressHash], activity)
	return nil
}

func (r *MemoryRepository) SuspiciousIncidentCount(_ context.Context, addressHash string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, a := range r.activity[addressHash] {
		if !a.ObservedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
