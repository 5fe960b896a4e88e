package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartcity/signalctl/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS signal_events (
		id         BIGSERIAL PRIMARY KEY,
		kind       TEXT        NOT NULL,
		entity_id  TEXT        NOT NULL,
		old_value  TEXT        NOT NULL DEFAULT '',
		new_value  TEXT        NOT NULL DEFAULT '',
		detail     TEXT        NOT NULL DEFAULT '',
		version    BIGINT      NOT NULL DEFAULT 0,
		timestamp  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS signal_events_timestamp_idx ON signal_events (timestamp);
`

// PostgresRepository implements domain.EventRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the journal table if it is missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return nil
}

// SaveEvent appends one event to the journal
func (r *PostgresRepository) SaveEvent(ctx context.Context, rec domain.EventRecord) error {
	query := `
		INSERT INTO signal_events (
			kind, entity_id, old_value, new_value, detail, version, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		string(rec.Kind), rec.EntityID, rec.OldValue, rec.NewValue, rec.Detail,
		int64(rec.Version), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save event: %w", err)
	}

	return nil
}

// GetEvents retrieves journal entries within a time range
func (r *PostgresRepository) GetEvents(ctx context.Context, from, to time.Time) ([]domain.EventRecord, error) {
	query := `
		SELECT kind, entity_id, old_value, new_value, detail, version, timestamp
		FROM signal_events
		WHERE timestamp BETWEEN $1 AND $2
		ORDER BY timestamp DESC, id DESC
		LIMIT 100
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query events: %w", err)
	}
	defer rows.Close()

	var results []domain.EventRecord
	for rows.Next() {
		var (
			rec     domain.EventRecord
			kind    string
			version int64
		)
		err := rows.Scan(
			&kind, &rec.EntityID, &rec.OldValue, &rec.NewValue, &rec.Detail, &version, &rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan event row: %w", err)
		}
		rec.Kind = domain.EventKind(kind)
		rec.Version = uint64(version)
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read events: %w", err)
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
