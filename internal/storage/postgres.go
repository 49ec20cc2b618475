package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists alerts durably. It is optional; when no database
// URL is configured the pipeline runs on the in-memory store alone.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pooled client to the given database URL and
// verifies the connection.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the alerts table and its indexes if missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			message TEXT NOT NULL,
			category TEXT NOT NULL,
			src_ip TEXT NOT NULL,
			country TEXT,
			country_code TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			severity TEXT DEFAULT 'medium',
			metadata JSONB,
			timestamp TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_category ON alerts(category)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ip ON alerts(src_ip)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity)`,
	}
	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveAlert inserts one enriched alert and returns its server-assigned id.
func (p *PostgresStore) SaveAlert(ctx context.Context, a Alert) (int64, error) {
	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	const query = `
		INSERT INTO alerts
			(message, category, src_ip, country, country_code,
			 latitude, longitude, severity, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var id int64
	err = p.pool.QueryRow(ctx, query,
		a.Message, a.Category, a.SrcIP, a.Country, a.CountryCode,
		a.Latitude, a.Longitude, a.Severity, meta, a.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}
	return id, nil
}

// RecentAlerts reads back the newest alerts, newest first.
func (p *PostgresStore) RecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	const query = `
		SELECT id::text, message, category, src_ip, country, country_code,
		       latitude, longitude, severity, metadata, timestamp
		FROM alerts
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var meta []byte
		err := rows.Scan(&a.ID, &a.Message, &a.Category, &a.SrcIP,
			&a.Country, &a.CountryCode, &a.Latitude, &a.Longitude,
			&a.Severity, &meta, &a.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Meta); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Close releases the connection pool.
func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
