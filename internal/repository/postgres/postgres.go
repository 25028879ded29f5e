package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skycast/weather/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS weather_lookups (
		id          BIGSERIAL PRIMARY KEY,
		place       TEXT NOT NULL,
		address     TEXT NOT NULL DEFAULT '',
		temperature DOUBLE PRECISION NOT NULL,
		conditions  TEXT NOT NULL DEFAULT '',
		is_mock     BOOLEAN NOT NULL DEFAULT FALSE,
		timestamp   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS weather_lookups_timestamp_idx ON weather_lookups (timestamp DESC);
`

// PostgresRepository implements domain.DataRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the lookup table when it does not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to migrate: %w", err)
	}
	return nil
}

// SaveLookup persists a resolved lookup to PostgreSQL
func (r *PostgresRepository) SaveLookup(ctx context.Context, l domain.Lookup) error {
	query := `
		INSERT INTO weather_lookups (
			place, address, temperature, conditions, is_mock, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		l.Place, l.Address, l.Temperature, l.Conditions, l.IsMock, l.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save lookup: %w", err)
	}

	return nil
}

// RecentLookups retrieves lookup history from PostgreSQL
func (r *PostgresRepository) RecentLookups(ctx context.Context, from, to time.Time, limit int) ([]domain.Lookup, error) {
	query := `
		SELECT place, address, temperature, conditions, is_mock, timestamp
		FROM weather_lookups
		WHERE timestamp BETWEEN $1 AND $2
		ORDER BY timestamp DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query lookups: %w", err)
	}
	defer rows.Close()

	var results []domain.Lookup
	for rows.Next() {
		var l domain.Lookup
		if err := rows.Scan(&l.Place, &l.Address, &l.Temperature, &l.Conditions, &l.IsMock, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan lookup row: %w", err)
		}
		results = append(results, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read lookups: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
