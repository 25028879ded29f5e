package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skycast/weather/internal/domain"
	"github.com/skycast/weather/internal/repository/postgres"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
	failGet bool
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]CacheEntry{}}
}

func (c *memCache) Get(_ context.Context, place string) (CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return CacheEntry{}, false, errors.New("redis: down")
	}
	e, ok := c.entries[strings.ToLower(place)]
	return e, ok, nil
}

func (c *memCache) Set(_ context.Context, place string, r domain.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.ToLower(place)] = CacheEntry{Report: r, StoredAt: time.Now()}
	return nil
}

func (c *memCache) Health(context.Context) error { return nil }

func (c *memCache) age(place string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[strings.ToLower(place)]
	e.StoredAt = e.StoredAt.Add(-d)
	c.entries[strings.ToLower(place)] = e
}

func TestLookupUsesFreshCache(t *testing.T) {
	srv, hits := provider(t, http.StatusOK, londonPayload)
	cache := newMemCache()
	svc := NewLookupService(NewWeatherService("test-key", srv.URL), cache, postgres.NewMockRepository(), time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Lookup(ctx, "London"); err != nil {
			t.Fatal(err)
		}
	}
	svc.WaitBackground()
	if n := hits.Load(); n != 1 {
		t.Errorf("provider hits = %d, want 1", n)
	}
}

func TestLookupServesStaleOnProviderFailure(t *testing.T) {
	srv, _ := provider(t, http.StatusOK, londonPayload)
	cache := newMemCache()
	repo := postgres.NewMockRepository()
	ctx := context.Background()

	good := NewLookupService(NewWeatherService("test-key", srv.URL), cache, repo, time.Minute, zerolog.Nop())
	if _, err := good.Lookup(ctx, "London"); err != nil {
		t.Fatal(err)
	}
	good.WaitBackground()
	cache.age("London", time.Hour)

	srv.Close()
	svc := NewLookupService(NewWeatherService("test-key", srv.URL), cache, repo, time.Minute, zerolog.Nop())
	r, err := svc.Lookup(ctx, "London")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Stale || r.IsMock {
		t.Errorf("want stale real report, got stale=%v mock=%v", r.Stale, r.IsMock)
	}
	if r.Current.Temperature != 14.2 {
		t.Errorf("temperature = %v", r.Current.Temperature)
	}
}

func TestLookupMockWithoutCache(t *testing.T) {
	repo := postgres.NewMockRepository()
	svc := NewLookupService(NewWeatherService("", ""), nil, repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	r, err := svc.Lookup(ctx, "Lima")
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsMock {
		t.Error("expected mock report")
	}

	svc.WaitBackground()
	history, err := svc.History(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Place != "Lima" || !history[0].IsMock {
		t.Errorf("history = %+v", history)
	}
}

func TestLookupCacheErrorFallsThrough(t *testing.T) {
	srv, hits := provider(t, http.StatusOK, londonPayload)
	cache := newMemCache()
	cache.failGet = true
	svc := NewLookupService(NewWeatherService("test-key", srv.URL), cache, postgres.NewMockRepository(), time.Minute, zerolog.Nop())

	if _, err := svc.Lookup(context.Background(), "London"); err != nil {
		t.Fatal(err)
	}
	svc.WaitBackground()
	if hits.Load() != 1 {
		t.Errorf("provider hits = %d, want 1", hits.Load())
	}
}

func TestLookupEmptyPlace(t *testing.T) {
	svc := NewLookupService(NewWeatherService("", ""), nil, postgres.NewMockRepository(), time.Minute, zerolog.Nop())
	if _, err := svc.Lookup(context.Background(), ""); !errors.Is(err, ErrEmptyPlace) {
		t.Errorf("err = %v, want ErrEmptyPlace", err)
	}
}

func TestHealth(t *testing.T) {
	svc := NewLookupService(NewWeatherService("", ""), newMemCache(), postgres.NewMockRepository(), time.Minute, zerolog.Nop())
	status := svc.Health(context.Background())
	if len(status) != 2 || status["database"] != nil || status["cache"] != nil {
		t.Errorf("status = %v", status)
	}
}
