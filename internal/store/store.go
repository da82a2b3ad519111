package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/patrickmn/go-cache"
)

// Store is the Postgres persistence layer for session eligibility records,
// per-number feature configuration, web users and usage counters. The
// transport's own key material lives in the whatsmeow container tables in the
// same database; rows here only say which numbers exist and should be online.
type Store struct {
	db       *sql.DB
	cfgCache *cache.Cache
}

// Open connects, tunes the pool and bootstraps the schema. Callers treat an
// error here as fatal: the gateway does not start without persistence.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err = bootstrapSchema(db); err != nil {
		return nil, err
	}
	return &Store{
		db:       db,
		cfgCache: cache.New(30*time.Second, time.Minute),
	}, nil
}

func bootstrapSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS wa_sessions (
			number TEXT PRIMARY KEY,
			user_id BIGINT,
			device_jid TEXT,
			is_active BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_connected TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS wa_feature_configs (
			number TEXT PRIMARY KEY,
			config JSONB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS wa_users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			email TEXT,
			full_name TEXT,
			password_hash TEXT NOT NULL,
			role TEXT DEFAULT 'user',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_login TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS wa_web_sessions (
			token TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			ip_address TEXT,
			user_agent TEXT,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS wa_usage_stats (
			number TEXT NOT NULL,
			day DATE NOT NULL,
			messages_received BIGINT DEFAULT 0,
			messages_sent BIGINT DEFAULT 0,
			commands_used BIGINT DEFAULT 0,
			PRIMARY KEY (number, day)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wa_sessions_user ON wa_sessions (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_wa_web_sessions_expiry ON wa_web_sessions (expires_at)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
