package records

import (
	"context"
	"sort"
	"sync"

	"confreg/pkg/platform/sentinel"
)

// InMemoryStore is used by tests and local runs without a database.
type InMemoryStore struct {
	mu   sync.RWMutex
	byTx map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byTx: make(map[string]Record)}
}

func (s *InMemoryStore) Upsert(_ context.Context, r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byTx[r.TransactionID]; ok {
		r = merge(existing, r)
	}
	s.byTx[r.TransactionID] = r
	return r, nil
}

func (s *InMemoryStore) FindByTransactionID(_ context.Context, transactionID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byTx[transactionID]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) ListByRegistration(_ context.Context, registrationID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.byTx {
		if r.RegistrationID == registrationID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
