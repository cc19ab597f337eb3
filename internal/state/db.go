package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS rebalance_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			trace_id VARCHAR(64) NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

			pre_total_assets DECIMAL(40, 0) NOT NULL,
			post_total_assets DECIMAL(40, 0) NOT NULL,
			batches JSONB,

			success BOOLEAN NOT NULL,
			error_message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_rebalance_snapshots_timestamp ON rebalance_snapshots(snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_rebalance_snapshots_trace ON rebalance_snapshots(trace_id);
		CREATE INDEX IF NOT EXISTS idx_rebalance_snapshots_success ON rebalance_snapshots(success);

		CREATE TABLE IF NOT EXISTS vault_events (
			event_id SERIAL PRIMARY KEY,
			event_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			event_type VARCHAR(20) NOT NULL,
			account VARCHAR(255) NOT NULL,
			receiver VARCHAR(255) NOT NULL,
			assets DECIMAL(40, 0) NOT NULL,
			shares DECIMAL(40, 0) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vault_events_timestamp ON vault_events(event_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_vault_events_account ON vault_events(account);
		CREATE INDEX IF NOT EXISTS idx_vault_events_type ON vault_events(event_type);
	`

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure database schema: %w", err)
	}

	log.Info().Msg("Database schema ensured successfully.")
	return nil
}

// TestDBConnection verifies the pool is alive.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := DB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
