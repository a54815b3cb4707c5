// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"

	"github.com/rainman456/Dllm-Demo-Saros/internal/logger"
)

var ErrNotInitialized = errors.New("database not initialized")

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Store is the Postgres-backed event store and stop-loss config store.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore wraps an open connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, logger: logger.GetForComponent("state"), now: time.Now}
}

// Open opens and pings a connection pool.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l := logger.GetForComponent("state")
	l.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("Successfully connected to the PostgreSQL database!")
	return db, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.db == nil {
		return
	}
	s.logger.Info().Msg("Closing database connection...")
	if err := s.db.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database connection")
	}
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS rebalancing_events (
		event_id VARCHAR(64) PRIMARY KEY,
		position_id VARCHAR(128) NOT NULL DEFAULT '',
		event_type VARCHAR(32) NOT NULL,
		pool_pair VARCHAR(64) NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_rebalancing_events_created ON rebalancing_events(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_rebalancing_events_position ON rebalancing_events(position_id);

	CREATE TABLE IF NOT EXISTS stop_loss_configs (
		position_id VARCHAR(128) PRIMARY KEY,
		enabled BOOLEAN NOT NULL,
		percentage DECIMAL(10, 4) NOT NULL,
		target_token VARCHAR(16) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

// EnsureSchema applies the DDL to create tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	s.logger.Info().Msg("Database schema ensured.")
	return nil
}

// DropSchema removes every table owned by the store.
func (s *Store) DropSchema(ctx context.Context) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS rebalancing_events, stop_loss_configs CASCADE;`); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	s.logger.Warn().Msg("Dropped rebalancer tables")
	return nil
}

// Ping tests if the database connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
