package service

import (
	"context"
	"time"

	"github.com/skycast/weather/internal/domain"
)

// DataRepository is re-exported from domain for convenience
type DataRepository = domain.DataRepository

// CacheEntry is a cached report and when it was stored
type CacheEntry struct {
	Report   domain.Report `json:"report"`
	StoredAt time.Time     `json:"stored_at"`
}

// Cache keeps recent reports per place. Entries outlive the freshness
// window so an unreachable provider can still be answered with stale data.
type Cache interface {
	Get(ctx context.Context, place string) (CacheEntry, bool, error)
	Set(ctx context.Context, place string, r domain.Report) error
	Health(ctx context.Context) error
}
