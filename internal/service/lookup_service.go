package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skycast/weather/internal/domain"
)

// HistoryLimit caps how many lookups History returns
const HistoryLimit = 100

// LookupService resolves places to reports through the cache, the provider
// and the history store
type LookupService struct {
	weatherSvc *WeatherService
	cache      Cache
	repo       DataRepository
	ttl        time.Duration
	logger     zerolog.Logger

	wgBg sync.WaitGroup // tracks background goroutines for graceful shutdown
}

// NewLookupService creates a lookup service. cache may be nil.
func NewLookupService(
	weatherSvc *WeatherService,
	cache Cache,
	repo DataRepository,
	ttl time.Duration,
	logger zerolog.Logger,
) *LookupService {
	return &LookupService{
		weatherSvc: weatherSvc,
		cache:      cache,
		repo:       repo,
		ttl:        ttl,
		logger:     logger,
	}
}

// WaitBackground blocks until all background save goroutines complete.
// Call during graceful shutdown to avoid dropped writes.
func (s *LookupService) WaitBackground() {
	s.wgBg.Wait()
}

// Lookup returns the report for place. A fresh cached copy wins. When the
// provider fails a cached copy is served marked stale, and without one the
// mock report stands in for unreachable providers.
func (s *LookupService) Lookup(ctx context.Context, place string) (domain.Report, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return domain.Report{}, ErrEmptyPlace
	}
	log := s.logger.With().Str("place", place).Logger()

	entry, cached := s.cached(ctx, place)
	if cached && time.Since(entry.StoredAt) < s.ttl {
		log.Debug().Msg("weather cache hit")
		return entry.Report, nil
	}

	report, err := s.weatherSvc.Fetch(ctx, place)
	if err != nil {
		switch {
		case cached:
			log.Warn().Err(err).Time("stored_at", entry.StoredAt).Msg("serving stale weather report")
			stale := entry.Report
			stale.Stale = true
			return stale, nil
		case errors.Is(err, errUpstream):
			log.Warn().Err(err).Msg("weather provider unavailable, using mock data")
			report = s.weatherSvc.Mock(place)
		default:
			return domain.Report{}, err
		}
	} else if s.cache != nil {
		if err := s.cache.Set(ctx, place, report); err != nil {
			log.Warn().Err(err).Msg("failed to cache weather report")
		}
	}

	s.persist(report)
	return report, nil
}

// History returns lookups from the past window, newest first
func (s *LookupService) History(ctx context.Context, window time.Duration) ([]domain.Lookup, error) {
	now := time.Now()
	return s.repo.RecentLookups(ctx, now.Add(-window), now, HistoryLimit)
}

// Health reports storage and cache connectivity by component name
func (s *LookupService) Health(ctx context.Context) map[string]error {
	status := map[string]error{"database": s.repo.Health(ctx)}
	if s.cache != nil {
		status["cache"] = s.cache.Health(ctx)
	}
	return status
}

func (s *LookupService) cached(ctx context.Context, place string) (CacheEntry, bool) {
	if s.cache == nil {
		return CacheEntry{}, false
	}
	entry, ok, err := s.cache.Get(ctx, place)
	if err != nil {
		s.logger.Warn().Err(err).Str("place", place).Msg("weather cache read failed")
		return CacheEntry{}, false
	}
	return entry, ok
}

// persist saves the lookup asynchronously (tracked for graceful shutdown)
func (s *LookupService) persist(report domain.Report) {
	s.wgBg.Add(1)
	go func() {
		defer s.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.SaveLookup(bgCtx, domain.LookupFromReport(report)); err != nil {
			s.logger.Error().Err(err).Str("place", report.Place).Msg("failed to save lookup")
		}
	}()
}
