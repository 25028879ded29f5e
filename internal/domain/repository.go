package domain

import (
	"context"
	"time"
)

// Lookup is one resolved place kept in the history store
type Lookup struct {
	Place       string    `json:"place"`
	Address     string    `json:"address"`
	Temperature float64   `json:"temperature"`
	Conditions  string    `json:"conditions"`
	IsMock      bool      `json:"is_mock"`
	Timestamp   time.Time `json:"timestamp"`
}

// LookupFromReport flattens a report into a history record
func LookupFromReport(r Report) Lookup {
	return Lookup{
		Place:       r.Place,
		Address:     r.Address,
		Temperature: r.Current.Temperature,
		Conditions:  r.Current.Conditions,
		IsMock:      r.IsMock,
		Timestamp:   r.Timestamp,
	}
}

// DataRepository defines the interface for lookup history persistence.
// The domain owns the contract; storage packages implement it.
type DataRepository interface {
	// SaveLookup persists a resolved lookup
	SaveLookup(ctx context.Context, l Lookup) error

	// RecentLookups returns lookups in [from, to], newest first
	RecentLookups(ctx context.Context, from, to time.Time, limit int) ([]Lookup, error)

	// Health checks storage connectivity
	Health(ctx context.Context) error
}
