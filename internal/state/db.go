package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// Store wraps the database connection pool. It is constructed explicitly and
// passed to consumers; the engine runs without one when history persistence
// is disabled.
type Store struct {
	db *sql.DB
}

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// NewStore initializes the database connection pool.
func NewStore(cfg DBConfig) (*Store, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return &Store{db: db}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	if s.db != nil {
		log.Info().Msg("Closing database connection...")
		if err := s.db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func (s *Store) EnsureSchema() error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS scoring_weights (
			weights_id SERIAL PRIMARY KEY,
			config_name TEXT NOT NULL,
			version INT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			repay_weight DOUBLE PRECISION NOT NULL,
			diversity_weight DOUBLE PRECISION NOT NULL,
			age_weight DOUBLE PRECISION NOT NULL,
			activity_weight DOUBLE PRECISION NOT NULL,
			risk_weight DOUBLE PRECISION NOT NULL,
			social_weight DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (config_name, version)
		);

		CREATE TABLE IF NOT EXISTS score_snapshots (
			snapshot_id BIGSERIAL PRIMARY KEY,
			address TEXT NOT NULL,
			score INT NOT NULL,
			tier TEXT NOT NULL,
			repay_bp INT NOT NULL,
			diversity_bp INT NOT NULL,
			age_bp INT NOT NULL,
			activity_bp INT NOT NULL,
			risk_bp INT NOT NULL,
			social_bp INT NOT NULL,
			tx_hash TEXT,
			block_number BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_score_snapshots_address
			ON score_snapshots (address, created_at DESC);
	`

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	log.Info().Msg("Database schema ensured.")
	return nil
}
