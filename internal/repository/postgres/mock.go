package postgres

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skycast/weather/internal/domain"
)

// mockCapacity bounds how many lookups demo mode remembers
const mockCapacity = 500

// MockRepository implements domain.DataRepository in memory for testing/demo
// mode
type MockRepository struct {
	mu      sync.Mutex
	lookups []domain.Lookup
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// SaveLookup keeps the lookup, dropping the oldest beyond capacity
func (r *MockRepository) SaveLookup(ctx context.Context, l domain.Lookup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, l)
	if len(r.lookups) > mockCapacity {
		r.lookups = r.lookups[len(r.lookups)-mockCapacity:]
	}
	return nil
}

// RecentLookups returns saved lookups in [from, to], newest first
func (r *MockRepository) RecentLookups(ctx context.Context, from, to time.Time, limit int) ([]domain.Lookup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var results []domain.Lookup
	for _, l := range r.lookups {
		if l.Timestamp.Before(from) || l.Timestamp.After(to) {
			continue
		}
		results = append(results, l)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
